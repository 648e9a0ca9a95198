package executor

import (
	"context"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/rpc"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/fedmesh/fedmesh/pkg/udf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWorkerClient is an in-memory stand-in for *rpc.Client: it keeps a
// running table of named schemas and rows so CreateRemoteTable,
// CreateMergeTable, RunUDF, and GetTableData can all observe each other's
// effects within one test.
type fakeWorkerClient struct {
	nodeID string
	// runUDF is invoked for every RunUDF call; tests supply the behavior.
	runUDF func(req rpc.RunUDFRequest) ([]types.TableInfo, error)
	rows   map[string][][]any
	fail   bool
}

func (f *fakeWorkerClient) CreateMergeTable(ctx context.Context, requestID string, name types.TableName, inputs []types.TableName) (types.TableInfo, error) {
	if f.fail {
		return types.TableInfo{}, context.DeadlineExceeded
	}
	return types.TableInfo{Name: name, Type: types.TableMerge, Schema: types.Schema{{Name: "v", DType: types.DTypeReal}}}, nil
}

func (f *fakeWorkerClient) CreateRemoteTable(ctx context.Context, requestID string, name types.TableName, schema types.Schema, fromNode string) (types.TableInfo, error) {
	if f.fail {
		return types.TableInfo{}, context.DeadlineExceeded
	}
	return types.TableInfo{Name: name, Type: types.TableRemote, Schema: schema}, nil
}

func (f *fakeWorkerClient) RunUDF(ctx context.Context, requestID string, req rpc.RunUDFRequest) ([]types.TableInfo, error) {
	return f.runUDF(req)
}

func (f *fakeWorkerClient) GetTableData(ctx context.Context, requestID string, table types.TableName) (rpc.GetTableDataResponse, error) {
	return rpc.GetTableDataResponse{
		Schema: types.Schema{{Name: "v", DType: types.DTypeReal}},
		Rows:   f.rows[table.String()],
	}, nil
}

func (f *fakeWorkerClient) Close() error { return nil }

func localOutputTable(nodeID string, req rpc.RunUDFRequest) types.TableInfo {
	return types.TableInfo{Name: req.OutputNames[0], Type: types.TableNormal, Schema: types.Schema{{Name: "v", DType: types.DTypeReal}}}
}

func testRegistry() *udf.Registry {
	reg := udf.NewRegistry()
	reg.Register(udf.Declaration{
		Name:       "udf_paired_ttest_local_paired",
		Positional: []udf.ParamSpec{{Name: udf.KindRelation}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindSecureTransfer, SecureOp: udf.SecureSum}},
	})
	reg.Register(udf.Declaration{
		Name:       "udf_paired_ttest_global_paired",
		Positional: []udf.ParamSpec{{Name: udf.KindMergeTransfer}},
		Outputs:    []udf.ParamSpec{{Name: udf.KindTransfer}},
	})
	return reg
}

func testPlan() Plan {
	return Plan{
		Algorithm: "paired_ttest",
		Steps: []StepSpec{
			{
				Name:      "local_paired",
				Target:    TargetLocal,
				PosInputs: []Input{{Kind: udf.KindRelation, Ref: &InitialViewRef}},
				Share:     []SharePolicy{ShareLocalToGlobal},
			},
			{
				Name:      "global_paired",
				Target:    TargetGlobal,
				PosInputs: []Input{{Kind: udf.KindMergeTransfer, Ref: &Ref{StepIndex: 0, OutputIndex: 0}}},
				Share:     []SharePolicy{ShareNone},
			},
		},
	}
}

func TestExecutorRunTwoStepPlan(t *testing.T) {
	localA := types.Node{ID: "local-a", Role: types.RoleLocal, QueueEndpoint: "local-a:1"}
	localB := types.Node{ID: "local-b", Role: types.RoleLocal, QueueEndpoint: "local-b:1"}
	global := types.Node{ID: "global-0", Role: types.RoleGlobal, QueueEndpoint: "global-0:1"}

	globalResultTable := types.TableName{Type: types.TableNormal, NodeID: "global-0", ContextID: "ctx1", CommandID: "cmd-final", ResultID: "r0"}

	clients := map[string]*fakeWorkerClient{
		"local-a": {nodeID: "local-a", runUDF: func(req rpc.RunUDFRequest) ([]types.TableInfo, error) {
			return []types.TableInfo{localOutputTable("local-a", req)}, nil
		}},
		"local-b": {nodeID: "local-b", runUDF: func(req rpc.RunUDFRequest) ([]types.TableInfo, error) {
			return []types.TableInfo{localOutputTable("local-b", req)}, nil
		}},
		"global-0": {nodeID: "global-0", runUDF: func(req rpc.RunUDFRequest) ([]types.TableInfo, error) {
			assert.Equal(t, "udf_paired_ttest_global_paired", req.FuncName)
			require.Len(t, req.PosArgs, 1)
			require.NotNil(t, req.PosArgs[0].TableRef)
			return []types.TableInfo{{Name: globalResultTable, Schema: types.Schema{{Name: "v", DType: types.DTypeReal}}}}, nil
		}, rows: map[string][][]any{globalResultTable.String(): {{1.96}}}},
	}

	dial := func(nodeID, addr string) (WorkerClient, error) { return clients[nodeID], nil }

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	exec := New(testRegistry(), broker, dial, nil, false, 0)

	view := types.TableInfo{
		Name:   types.TableName{Type: types.TableView, NodeID: "local-a", ContextID: "ctx1", CommandID: "init", ResultID: "r0"},
		Schema: types.Schema{{Name: "x", DType: types.DTypeReal}, {Name: "y", DType: types.DTypeReal}},
	}
	viewB := view
	viewB.Name.NodeID = "local-b"

	result, err := exec.Run(context.Background(), RunRequest{
		RequestID:  "req1",
		ContextID:  "ctx1",
		Plan:       testPlan(),
		LocalNodes: []types.Node{localA, localB},
		GlobalNode: global,
		InitialViews: map[string]types.TableInfo{
			"local-a": view,
			"local-b": viewB,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, [][]any{{1.96}}, result.Rows)

	var touched int
	drain := true
	for drain {
		select {
		case ev := <-sub:
			if ev.Type == events.EventNodeTouched {
				touched++
			}
		case <-time.After(200 * time.Millisecond):
			drain = false
		}
	}
	assert.GreaterOrEqual(t, touched, 3, "expected node-touched events for both locals, the merge share, and the global step")
}

func TestExecutorRetriesOnceThenFails(t *testing.T) {
	attempts := 0
	flaky := &fakeWorkerClient{runUDF: func(req rpc.RunUDFRequest) ([]types.TableInfo, error) {
		attempts++
		return nil, ferrors.New(ferrors.Unreachable, "worker did not respond")
	}}
	dial := func(nodeID, addr string) (WorkerClient, error) { return flaky, nil }

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	exec := New(testRegistry(), broker, dial, nil, false, 0)
	plan := Plan{
		Algorithm: "paired_ttest",
		Steps: []StepSpec{
			{Name: "local_paired", Target: TargetLocal, PosInputs: []Input{{Kind: udf.KindRelation, Ref: &InitialViewRef}}, Share: []SharePolicy{ShareNone}},
		},
	}

	_, err := exec.Run(context.Background(), RunRequest{
		RequestID:    "req1",
		ContextID:    "ctx1",
		Plan:         plan,
		LocalNodes:   []types.Node{{ID: "local-a", Role: types.RoleLocal}},
		GlobalNode:   types.Node{ID: "global-0", Role: types.RoleGlobal},
		InitialViews: map[string]types.TableInfo{"local-a": {Schema: types.Schema{{Name: "x", DType: types.DTypeReal}}}},
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts, "expected one initial attempt plus one retry")
}
