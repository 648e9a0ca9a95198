// Package executor is the Algorithm Executor (C4): it drives one algorithm
// instance step by step, fanning a LOCAL step out to every local worker in
// parallel and running a GLOBAL step once on the aggregator worker,
// resolving each step's inputs against previously produced outputs,
// applying each output's sharing policy, and retrying a step once (on a
// fresh command id) against whichever workers failed retryably.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/log"
	"github.com/fedmesh/fedmesh/pkg/metrics"
	"github.com/fedmesh/fedmesh/pkg/rpc"
	"github.com/fedmesh/fedmesh/pkg/smpc"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/fedmesh/fedmesh/pkg/udf"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxStepRetries bounds how many times a step retries the subset of
// workers that failed retryably, per scenario 5 ("the executor retries
// once").
const maxStepRetries = 1

// WorkerClient is the slice of rpc.Client the executor needs. Declared as
// an interface, satisfied structurally by *rpc.Client, so tests can
// substitute fakes without a network.
type WorkerClient interface {
	CreateMergeTable(ctx context.Context, requestID string, name types.TableName, inputs []types.TableName) (types.TableInfo, error)
	CreateRemoteTable(ctx context.Context, requestID string, name types.TableName, schema types.Schema, fromNode string) (types.TableInfo, error)
	RunUDF(ctx context.Context, requestID string, req rpc.RunUDFRequest) ([]types.TableInfo, error)
	GetTableData(ctx context.Context, requestID string, table types.TableName) (rpc.GetTableDataResponse, error)
	Close() error
}

// SMPCClient is the slice of smpc.Client the executor needs.
type SMPCClient interface {
	LoadData(ctx context.Context, op smpc.Operation, tables []types.TableName) (smpc.JobHandle, error)
	PollResult(ctx context.Context, job smpc.JobHandle, timeout time.Duration) (types.TableInfo, error)
}

// DialFunc opens a connection to a node by id and address.
type DialFunc func(nodeID, addr string) (WorkerClient, error)

// Executor runs plans against a dialer, a UDF registry, and the shared
// event broker the cleaner consumes.
type Executor struct {
	udfRegistry     *udf.Registry
	broker          *events.Broker
	dial            DialFunc
	smpcClient      SMPCClient
	smpcEnabled     bool
	smpcPollTimeout time.Duration
	logger          zerolog.Logger
}

// New builds an executor. smpcClient may be nil when SMPC is disabled.
func New(udfRegistry *udf.Registry, broker *events.Broker, dial DialFunc, smpcClient SMPCClient, smpcEnabled bool, smpcPollTimeout time.Duration) *Executor {
	return &Executor{
		udfRegistry:     udfRegistry,
		broker:          broker,
		dial:            dial,
		smpcClient:      smpcClient,
		smpcEnabled:     smpcEnabled,
		smpcPollTimeout: smpcPollTimeout,
		logger:          log.WithComponent("executor"),
	}
}

// RunRequest is one algorithm instance's run-time context.
type RunRequest struct {
	RequestID    string
	ContextID    string
	Plan         Plan
	LocalNodes   []types.Node
	GlobalNode   types.Node
	InitialViews map[string]types.TableInfo
}

// Result is the terminal step's output, fetched verbatim.
type Result struct {
	Schema types.Schema
	Rows   [][]any
}

type stepOutput struct {
	Global *types.TableInfo
	Local  map[string]types.TableInfo
}

type stepState struct {
	outputs []stepOutput
}

// planState is the mutable bookkeeping for one Run call.
type planState struct {
	req     RunRequest
	steps   []stepState
	mu      sync.Mutex
	clients map[string]WorkerClient
	dial    DialFunc
	logger  zerolog.Logger
}

func newPlanState(req RunRequest, dial DialFunc, logger zerolog.Logger) *planState {
	return &planState{
		req:     req,
		steps:   make([]stepState, len(req.Plan.Steps)),
		clients: map[string]WorkerClient{},
		dial:    dial,
		logger:  logger,
	}
}

func (ps *planState) client(nodeID, addr string) (WorkerClient, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if c, ok := ps.clients[nodeID]; ok {
		return c, nil
	}
	c, err := ps.dial(nodeID, addr)
	if err != nil {
		return nil, err
	}
	ps.clients[nodeID] = c
	return c, nil
}

func (ps *planState) clientFor(node types.Node) (WorkerClient, error) {
	return ps.client(node.ID, node.QueueEndpoint)
}

func (ps *planState) closeAll() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, c := range ps.clients {
		c.Close()
	}
}

// Run drives a plan to completion and returns the terminal step's output.
func (e *Executor) Run(ctx context.Context, req RunRequest) (Result, error) {
	metrics.ExecutorActiveContexts.Inc()
	defer metrics.ExecutorActiveContexts.Dec()

	runLog := e.logger.With().Str("request_id", req.RequestID).Str("context_id", req.ContextID).
		Str("algorithm", req.Plan.Algorithm).Logger()
	ps := newPlanState(req, e.dial, runLog)
	defer ps.closeAll()

	for i, step := range req.Plan.Steps {
		decl, ok := e.udfRegistry.Lookup(udf.FuncName(req.Plan.Algorithm, step.Name))
		if !ok {
			return Result{}, ferrors.New(ferrors.UDFContractViolation,
				fmt.Sprintf("no UDF registered for algorithm %q step %q", req.Plan.Algorithm, step.Name))
		}

		stepLog := runLog.With().Int("step_index", i).Str("step_name", step.Name).Str("target", string(step.Target)).Logger()
		stepLog.Debug().Msg("running step")

		timer := metrics.NewTimer()
		err := e.runStep(ctx, ps, i, step, decl)
		timer.ObserveDurationVec(metrics.ExecutorStepDuration, req.Plan.Algorithm, string(step.Target))

		if err != nil {
			metrics.ExecutorStepsTotal.WithLabelValues(req.Plan.Algorithm, "failed").Inc()
			stepLog.Error().Err(err).Msg("step failed")
			e.broker.Publish(&events.Event{
				Type:      events.EventStepFailed,
				ContextID: req.ContextID,
				Message:   err.Error(),
				Metadata:  map[string]string{"step": step.Name},
			})
			return Result{}, err
		}
		metrics.ExecutorStepsTotal.WithLabelValues(req.Plan.Algorithm, "completed").Inc()
	}

	return e.fetchTerminal(ctx, ps)
}

func (e *Executor) runStep(ctx context.Context, ps *planState, stepIdx int, step StepSpec, decl udf.Declaration) error {
	var outs []stepOutput
	var err error
	switch step.Target {
	case TargetLocal:
		outs, err = e.runLocalStep(ctx, ps, stepIdx, step, decl)
	case TargetGlobal:
		outs, err = e.runGlobalStep(ctx, ps, stepIdx, step, decl)
	default:
		return ferrors.New(ferrors.UDFContractViolation, fmt.Sprintf("step %q has unknown target %q", step.Name, step.Target))
	}
	if err != nil {
		return err
	}

	for outIdx := range outs {
		policy := ShareNone
		if outIdx < len(step.Share) {
			policy = step.Share[outIdx]
		}
		if err := e.applySharing(ctx, ps, step, decl, outIdx, policy, &outs[outIdx]); err != nil {
			return err
		}
	}
	ps.steps[stepIdx] = stepState{outputs: outs}
	return nil
}

// resolveInput turns a plan-level Input into a concrete udf.Arg for one
// worker, creating no new tables of its own: cross-side references must
// already have been shared by the producing step's own Share policy.
func (e *Executor) resolveInput(ps *planState, target Target, nodeID string, in Input) (udf.Arg, error) {
	if in.Ref == nil {
		return udf.Arg{Kind: in.Kind, Literal: in.Literal}, nil
	}
	if *in.Ref == InitialViewRef {
		if target != TargetLocal {
			return udf.Arg{}, ferrors.New(ferrors.UDFContractViolation, "a global step cannot reference the initial per-node dataset view directly")
		}
		view, ok := ps.req.InitialViews[nodeID]
		if !ok {
			return udf.Arg{}, ferrors.New(ferrors.RemoteInternal, fmt.Sprintf("no initial view materialized for node %s", nodeID))
		}
		return udf.Arg{Kind: in.Kind, Table: &view}, nil
	}

	out := ps.steps[in.Ref.StepIndex].outputs[in.Ref.OutputIndex]
	switch target {
	case TargetLocal:
		table, ok := out.Local[nodeID]
		if !ok {
			return udf.Arg{}, ferrors.New(ferrors.RemoteInternal,
				fmt.Sprintf("step %d output %d is not available on local node %s", in.Ref.StepIndex, in.Ref.OutputIndex, nodeID))
		}
		return udf.Arg{Kind: in.Kind, Table: &table}, nil
	case TargetGlobal:
		if out.Global == nil {
			return udf.Arg{}, ferrors.New(ferrors.RemoteInternal,
				fmt.Sprintf("step %d output %d is not available on the global worker", in.Ref.StepIndex, in.Ref.OutputIndex))
		}
		return udf.Arg{Kind: in.Kind, Table: out.Global}, nil
	default:
		return udf.Arg{}, ferrors.New(ferrors.UDFContractViolation, "unknown step target")
	}
}

func (e *Executor) buildCall(ps *planState, step StepSpec, decl udf.Declaration, target Target, nodeID string) (udf.Call, error) {
	posArgs := make([]udf.Arg, len(step.PosInputs))
	for i, in := range step.PosInputs {
		arg, err := e.resolveInput(ps, target, nodeID, in)
		if err != nil {
			return udf.Call{}, err
		}
		posArgs[i] = arg
	}
	kwArgs := make(map[string]udf.Arg, len(step.KwInputs))
	for name, in := range step.KwInputs {
		arg, err := e.resolveInput(ps, target, nodeID, in)
		if err != nil {
			return udf.Call{}, err
		}
		kwArgs[name] = arg
	}
	return udf.Bind(decl, posArgs, kwArgs)
}

func toRPCArg(arg udf.Arg) rpc.PosArg {
	if arg.Table != nil {
		name := arg.Table.Name
		return rpc.PosArg{TableRef: &name}
	}
	return rpc.PosArg{Literal: arg.Literal}
}

// toRPCArtifact converts C3's generated artifact into its wire form.
func toRPCArtifact(a udf.Artifact) rpc.Artifact {
	results := make([]rpc.ArtifactResult, len(a.Results))
	for i, r := range a.Results {
		results[i] = rpc.ArtifactResult{
			Table:    r.Name,
			Template: r.Template,
			SumOp:    r.SumOp,
			MinOp:    r.MinOp,
			MaxOp:    r.MaxOp,
		}
	}
	return rpc.Artifact{Definition: a.Definition, Invocation: a.Invocation, Results: results}
}

// dispatchOne materializes and issues one runUDF call on one worker.
func (e *Executor) dispatchOne(ctx context.Context, ps *planState, step StepSpec, decl udf.Declaration, node types.Node, commandID string) ([]types.TableInfo, error) {
	call, err := e.buildCall(ps, step, decl, targetForRole(node), node.ID)
	if err != nil {
		return nil, err
	}

	client, err := ps.clientFor(node)
	if err != nil {
		return nil, err
	}

	req := rpc.RunUDFRequest{
		FuncName:    udf.FuncName(ps.req.Plan.Algorithm, step.Name),
		PosArgs:     make([]rpc.PosArg, len(call.PosArgs)),
		KwArgs:      make(map[string]rpc.PosArg, len(call.KwArgs)),
		UseSMPC:     step.UseSMPC && e.smpcEnabled,
		OutputNames: udf.OutputTableNames(node.ID, ps.req.ContextID, commandID, decl.Outputs),
	}
	for i, arg := range call.PosArgs {
		req.PosArgs[i] = toRPCArg(arg)
	}
	for name, arg := range call.KwArgs {
		req.KwArgs[name] = toRPCArg(arg)
	}
	schemas := udf.ResolveOutputSchemas(call)
	if anyNonNil(schemas) {
		req.OutputSchema = flattenSchemas(schemas)
	}

	artifact, err := udf.GenerateArtifact(call, req.FuncName, req.OutputNames, schemas, req.UseSMPC)
	if err != nil {
		return nil, err
	}
	req.Artifact = toRPCArtifact(artifact)

	return client.RunUDF(ctx, ps.req.RequestID, req)
}

func targetForRole(n types.Node) Target {
	if n.Role == types.RoleGlobal {
		return TargetGlobal
	}
	return TargetLocal
}

func anyNonNil(schemas []*types.Schema) bool {
	for _, s := range schemas {
		if s != nil {
			return true
		}
	}
	return false
}

func flattenSchemas(schemas []*types.Schema) []types.Schema {
	out := make([]types.Schema, len(schemas))
	for i, s := range schemas {
		if s != nil {
			out[i] = *s
		}
	}
	return out
}

// runLocalStep fans a step out to every local worker in parallel, retrying
// once (on a fresh command id) against only the workers that failed
// retryably.
func (e *Executor) runLocalStep(ctx context.Context, ps *planState, stepIdx int, step StepSpec, decl udf.Declaration) ([]stepOutput, error) {
	pending := ps.req.LocalNodes
	results := map[string][]types.TableInfo{}

	for attempt := 0; attempt <= maxStepRetries && len(pending) > 0; attempt++ {
		commandID := uuid.NewString()

		type outcome struct {
			node   types.Node
			tables []types.TableInfo
			err    error
		}
		outcomes := make(chan outcome, len(pending))
		var wg sync.WaitGroup
		for _, node := range pending {
			wg.Add(1)
			go func(node types.Node) {
				defer wg.Done()
				tables, err := e.dispatchOne(ctx, ps, step, decl, node, commandID)
				outcomes <- outcome{node: node, tables: tables, err: err}
			}(node)
		}
		wg.Wait()
		close(outcomes)

		var retry []types.Node
		for o := range outcomes {
			if o.err == nil {
				results[o.node.ID] = o.tables
				e.broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: ps.req.ContextID, NodeID: o.node.ID})
				continue
			}
			kind := ferrors.KindOf(o.err)
			if ferrors.IsRetryable(kind) && attempt < maxStepRetries {
				ps.logger.Warn().Str("node_id", o.node.ID).Err(o.err).Msg("step failed retryably, retrying with a fresh command id")
				retry = append(retry, o.node)
				continue
			}
			return nil, ferrors.Wrap(kind, fmt.Sprintf("local step %q fatal on node %s", step.Name, o.node.ID), o.err)
		}
		pending = retry
	}

	if len(pending) > 0 {
		names := make([]string, len(pending))
		for i, n := range pending {
			names[i] = n.ID
		}
		return nil, ferrors.New(ferrors.Unreachable, fmt.Sprintf("local step %q exhausted retries on nodes %v", step.Name, names))
	}

	outs := make([]stepOutput, len(decl.Outputs))
	for outIdx := range decl.Outputs {
		out := stepOutput{Local: map[string]types.TableInfo{}}
		for nodeID, tables := range results {
			out.Local[nodeID] = tables[outIdx]
		}
		outs[outIdx] = out
	}
	return outs, nil
}

// runGlobalStep issues a step once on the global worker, retrying once on
// a fresh command id when the failure is retryable (Unreachable or Timeout).
func (e *Executor) runGlobalStep(ctx context.Context, ps *planState, stepIdx int, step StepSpec, decl udf.Declaration) ([]stepOutput, error) {
	var lastErr error
	for attempt := 0; attempt <= maxStepRetries; attempt++ {
		commandID := uuid.NewString()
		tables, err := e.dispatchOne(ctx, ps, step, decl, ps.req.GlobalNode, commandID)
		if err == nil {
			e.broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: ps.req.ContextID, NodeID: ps.req.GlobalNode.ID})
			outs := make([]stepOutput, len(decl.Outputs))
			for outIdx := range decl.Outputs {
				t := tables[outIdx]
				outs[outIdx] = stepOutput{Global: &t}
			}
			return outs, nil
		}
		lastErr = err
		kind := ferrors.KindOf(err)
		if !ferrors.IsRetryable(kind) || attempt >= maxStepRetries {
			return nil, ferrors.Wrap(kind, fmt.Sprintf("global step %q failed", step.Name), err)
		}
		ps.logger.Warn().Err(err).Msg("global step failed retryably, retrying with a fresh command id")
	}
	return nil, ferrors.Wrap(ferrors.KindOf(lastErr), fmt.Sprintf("global step %q exhausted retries", step.Name), lastErr)
}

// fetchTerminal reads the last step's first output verbatim from the
// global worker, per §4.4 point 6.
func (e *Executor) fetchTerminal(ctx context.Context, ps *planState) (Result, error) {
	last := ps.steps[len(ps.steps)-1]
	if len(last.outputs) == 0 {
		return Result{}, ferrors.New(ferrors.RemoteInternal, "terminal step produced no outputs")
	}
	out := last.outputs[0]
	if out.Global == nil {
		return Result{}, ferrors.New(ferrors.RemoteInternal, "terminal step output is not available on the global worker")
	}

	client, err := ps.clientFor(ps.req.GlobalNode)
	if err != nil {
		return Result{}, err
	}
	resp, err := client.GetTableData(ctx, ps.req.RequestID, out.Global.Name)
	if err != nil {
		return Result{}, err
	}
	return Result{Schema: resp.Schema, Rows: resp.Rows}, nil
}
