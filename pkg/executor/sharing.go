package executor

import (
	"context"
	"fmt"

	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/metrics"
	"github.com/fedmesh/fedmesh/pkg/smpc"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/fedmesh/fedmesh/pkg/udf"
	"github.com/google/uuid"
)

// applySharing routes one step output through its declared policy. A
// secure-transfer output with an SMPC-capable step and the cluster enabled
// takes the SMPC path (§4.4.2) instead of a plain merge table.
func (e *Executor) applySharing(ctx context.Context, ps *planState, step StepSpec, decl udf.Declaration, outIdx int, policy SharePolicy, out *stepOutput) error {
	if policy == ShareNone || policy == "" {
		return nil
	}

	spec := decl.Outputs[outIdx]
	if policy == ShareLocalToGlobal && spec.Name == udf.KindSecureTransfer && spec.SecureOp != "" && step.UseSMPC && e.smpcEnabled {
		return e.shareViaSMPC(ctx, ps, spec, out)
	}

	switch policy {
	case ShareLocalToGlobal:
		return e.shareLocalToGlobal(ctx, ps, outIdx, out)
	case ShareGlobalToLocal:
		return e.shareGlobalToLocal(ctx, ps, outIdx, out)
	default:
		return ferrors.New(ferrors.UDFContractViolation, fmt.Sprintf("unknown sharing policy %q", policy))
	}
}

// shareLocalToGlobal builds a merge table on the global worker out of
// remote tables pointing at each local worker's output, per §4.4.1.
func (e *Executor) shareLocalToGlobal(ctx context.Context, ps *planState, outIdx int, out *stepOutput) error {
	if len(out.Local) == 0 {
		return ferrors.New(ferrors.RemoteInternal, "local_to_global sharing requested on an output with no local tables")
	}
	globalClient, err := ps.clientFor(ps.req.GlobalNode)
	if err != nil {
		return err
	}

	commandID := uuid.NewString()
	var remoteNames []types.TableName
	var schema types.Schema
	for nodeID, table := range out.Local {
		schema = table.Schema
		remoteName := types.TableName{
			Type: types.TableRemote, NodeID: ps.req.GlobalNode.ID,
			ContextID: ps.req.ContextID, CommandID: commandID, ResultID: fmt.Sprintf("o%dn%s", outIdx, nodeID),
		}
		info, err := globalClient.CreateRemoteTable(ctx, ps.req.RequestID, remoteName, table.Schema, nodeID)
		if err != nil {
			return ferrors.Wrap(ferrors.KindOf(err), fmt.Sprintf("create remote table for %s on global worker", nodeID), err)
		}
		remoteNames = append(remoteNames, info.Name)
	}

	mergeName := types.TableName{
		Type: types.TableMerge, NodeID: ps.req.GlobalNode.ID,
		ContextID: ps.req.ContextID, CommandID: commandID, ResultID: fmt.Sprintf("o%d", outIdx),
	}
	mergeInfo, err := globalClient.CreateMergeTable(ctx, ps.req.RequestID, mergeName, remoteNames)
	if err != nil {
		return ferrors.Wrap(ferrors.KindOf(err), "create merge table on global worker", err)
	}
	if mergeInfo.Schema == nil {
		mergeInfo.Schema = schema
	}
	out.Global = &mergeInfo
	e.broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: ps.req.ContextID, NodeID: ps.req.GlobalNode.ID})
	return nil
}

// shareGlobalToLocal creates a remote table on every local worker pointing
// at the global output, per §4.4.1.
func (e *Executor) shareGlobalToLocal(ctx context.Context, ps *planState, outIdx int, out *stepOutput) error {
	if out.Global == nil {
		return ferrors.New(ferrors.RemoteInternal, "global_to_local sharing requested on an output with no global table")
	}
	if out.Local == nil {
		out.Local = map[string]types.TableInfo{}
	}

	commandID := uuid.NewString()
	for _, node := range ps.req.LocalNodes {
		client, err := ps.clientFor(node)
		if err != nil {
			return err
		}
		remoteName := types.TableName{
			Type: types.TableRemote, NodeID: node.ID,
			ContextID: ps.req.ContextID, CommandID: commandID, ResultID: fmt.Sprintf("o%d", outIdx),
		}
		info, err := client.CreateRemoteTable(ctx, ps.req.RequestID, remoteName, out.Global.Schema, ps.req.GlobalNode.ID)
		if err != nil {
			return ferrors.Wrap(ferrors.KindOf(err), fmt.Sprintf("create remote table on local node %s", node.ID), err)
		}
		out.Local[node.ID] = info
		e.broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: ps.req.ContextID, NodeID: node.ID})
	}
	return nil
}

// shareViaSMPC hands the per-local secure-transfer output's operation
// tables to the external SMPC cluster and wires the materialized result
// back in as the global worker's view of this output, per §4.4.2.
func (e *Executor) shareViaSMPC(ctx context.Context, ps *planState, spec udf.ParamSpec, out *stepOutput) error {
	if len(out.Local) == 0 {
		return ferrors.New(ferrors.RemoteInternal, "smpc sharing requested on an output with no local tables")
	}

	names := make([]types.TableName, 0, len(out.Local))
	for _, table := range out.Local {
		names = append(names, table.Name)
	}

	op := smpc.Operation(spec.SecureOp)
	job, err := e.smpcClient.LoadData(ctx, op, names)
	if err != nil {
		metrics.SMPCJobsTotal.WithLabelValues("load_failed").Inc()
		return ferrors.Wrap(ferrors.SMPCFailure, "submit smpc aggregation job", err)
	}

	timer := metrics.NewTimer()
	result, err := e.smpcClient.PollResult(ctx, job, e.smpcPollTimeout)
	timer.ObserveDuration(metrics.SMPCJobDuration)
	if err != nil {
		metrics.SMPCJobsTotal.WithLabelValues("failed").Inc()
		return ferrors.Wrap(ferrors.SMPCFailure, fmt.Sprintf("smpc job %s did not produce a result", job.JobID), err)
	}
	metrics.SMPCJobsTotal.WithLabelValues("succeeded").Inc()

	out.Global = &result
	e.broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: ps.req.ContextID, NodeID: ps.req.GlobalNode.ID})
	return nil
}
