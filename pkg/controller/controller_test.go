package controller

import (
	"context"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/rpc"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRegistry struct {
	snapshot types.RegistrySnapshot
}

func (f fixedRegistry) Snapshot() types.RegistrySnapshot { return f.snapshot }

type mapCatalog map[string]AlgorithmSpec

func (m mapCatalog) Lookup(name string) (AlgorithmSpec, bool) {
	spec, ok := m[name]
	return spec, ok
}

type fakeViewClient struct {
	table types.TableInfo
	fail  bool
}

func (f *fakeViewClient) CreateDataModelViews(ctx context.Context, requestID string, req rpc.CreateDataModelViewsRequest) ([]types.TableInfo, error) {
	if f.fail {
		return nil, ferrors.New(ferrors.Unreachable, "node did not respond")
	}
	return []types.TableInfo{f.table}, nil
}

func (f *fakeViewClient) Close() error { return nil }

type fakeExecutor struct {
	result executor.Result
	err    error
	gotReq executor.RunRequest
}

func (f *fakeExecutor) Run(ctx context.Context, req executor.RunRequest) (executor.Result, error) {
	f.gotReq = req
	return f.result, f.err
}

func baseSnapshot() types.RegistrySnapshot {
	return types.RegistrySnapshot{
		Nodes: map[string]types.Node{
			"global-0": {ID: "global-0", Role: types.RoleGlobal, QueueEndpoint: "global-0:1"},
			"local-a":  {ID: "local-a", Role: types.RoleLocal, QueueEndpoint: "local-a:1"},
			"local-b":  {ID: "local-b", Role: types.RoleLocal, QueueEndpoint: "local-b:1"},
		},
		DataModels: map[string]types.DataModel{"dm:0.1": {Name: "dm", Version: "0.1"}},
		DatasetLocations: map[string]map[string]string{
			"dm:0.1": {"ds1": "local-a", "ds2": "local-b"},
		},
		DatasetLabels: map[string]map[string]string{"dm:0.1": {}},
	}
}

func testSpec() AlgorithmSpec {
	return AlgorithmSpec{
		Columns: func(req Request) ([]string, error) {
			return append(append([]string{}, req.X...), req.Y...), nil
		},
		BuildPlan: func(req Request) (executor.Plan, error) {
			return executor.Plan{Algorithm: "paired_ttest"}, nil
		},
	}
}

func TestControllerRunHappyPath(t *testing.T) {
	view := types.TableInfo{Name: types.TableName{Type: types.TableView, NodeID: "local-a", ContextID: "c", CommandID: "init", ResultID: "r0"}}
	dial := func(nodeID, addr string) (ViewClient, error) { return &fakeViewClient{table: view}, nil }

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	exec := &fakeExecutor{result: executor.Result{Rows: [][]any{{1.96}}}}
	ctrl := New(fixedRegistry{snapshot: baseSnapshot()}, mapCatalog{"paired_ttest": testSpec()}, exec, broker, dial, 10, true)

	result, err := ctrl.Run(context.Background(), "req1", Request{
		Algorithm:    "paired_ttest",
		DataModelKey: "dm:0.1",
		Datasets:     []string{"ds1", "ds2"},
		X:            []string{"x"},
		Y:            []string{"y"},
	})

	require.NoError(t, err)
	assert.Equal(t, [][]any{{1.96}}, result.Rows)
	assert.Len(t, exec.gotReq.InitialViews, 2)
	assert.Equal(t, "global-0", exec.gotReq.GlobalNode.ID)

	var sawCreated, sawReleased bool
	var touched int
	drain := true
	for drain {
		select {
		case ev := <-sub:
			switch ev.Type {
			case events.EventContextCreated:
				sawCreated = true
			case events.EventContextReleased:
				sawReleased = true
			case events.EventNodeTouched:
				touched++
			}
		case <-time.After(200 * time.Millisecond):
			drain = false
		}
	}
	assert.True(t, sawCreated)
	assert.True(t, sawReleased)
	assert.Equal(t, 2, touched)
}

func TestControllerRunRejectsMissingDataset(t *testing.T) {
	dial := func(nodeID, addr string) (ViewClient, error) { t.Fatal("dial should not be called"); return nil, nil }
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	exec := &fakeExecutor{}
	ctrl := New(fixedRegistry{snapshot: baseSnapshot()}, mapCatalog{"paired_ttest": testSpec()}, exec, broker, dial, 10, true)

	_, err := ctrl.Run(context.Background(), "req1", Request{
		Algorithm:    "paired_ttest",
		DataModelKey: "dm:0.1",
		Datasets:     []string{"ds1", "does-not-exist"},
	})

	require.Error(t, err)
	assert.Equal(t, ferrors.BadUserInput, ferrors.KindOf(err))
}

func TestControllerRunFailsWithoutGlobalNode(t *testing.T) {
	snapshot := baseSnapshot()
	delete(snapshot.Nodes, "global-0")
	dial := func(nodeID, addr string) (ViewClient, error) { t.Fatal("dial should not be called"); return nil, nil }
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	exec := &fakeExecutor{}
	ctrl := New(fixedRegistry{snapshot: snapshot}, mapCatalog{"paired_ttest": testSpec()}, exec, broker, dial, 10, true)

	_, err := ctrl.Run(context.Background(), "req1", Request{
		Algorithm:    "paired_ttest",
		DataModelKey: "dm:0.1",
		Datasets:     []string{"ds1", "ds2"},
	})

	require.Error(t, err)
	assert.Equal(t, ferrors.Unreachable, ferrors.KindOf(err))
}

func TestControllerRunUnknownAlgorithm(t *testing.T) {
	dial := func(nodeID, addr string) (ViewClient, error) { t.Fatal("dial should not be called"); return nil, nil }
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	ctrl := New(fixedRegistry{snapshot: baseSnapshot()}, mapCatalog{}, &fakeExecutor{}, broker, dial, 10, true)

	_, err := ctrl.Run(context.Background(), "req1", Request{Algorithm: "nonexistent"})

	require.Error(t, err)
	assert.Equal(t, ferrors.BadUserInput, ferrors.KindOf(err))
}
