package controller

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fedmesh/fedmesh/pkg/events"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/log"
	"github.com/fedmesh/fedmesh/pkg/metrics"
	"github.com/fedmesh/fedmesh/pkg/registry"
	"github.com/fedmesh/fedmesh/pkg/rpc"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request is one incoming algorithm execution request, already decoded
// from the facade's JSON body.
type Request struct {
	Algorithm    string
	DataModelKey string
	Datasets     []string
	X            []string
	Y            []string
	Filters      string
	Parameters   map[string]any
}

// AlgorithmSpec is one entry of the algorithm catalog: enough for the
// controller to materialize the per-node dataset view and build a Plan,
// without the controller knowing anything about the algorithm's UDFs.
type AlgorithmSpec struct {
	// Info describes the algorithm for the facade's GET /algorithms
	// listing; it plays no part in running a request.
	Info AlgorithmInfo
	// Columns returns the flat, ordered column list the single per-node
	// view needs (conventionally req.X followed by req.Y).
	Columns func(req Request) ([]string, error)
	// BuildPlan returns the concrete Plan for this request's parameters.
	BuildPlan func(req Request) (executor.Plan, error)
}

// ParamInfo describes one named algorithm parameter for the catalog
// listing, so a caller can construct a valid request without already
// knowing the algorithm.
type ParamInfo struct {
	Name     string
	Type     string
	Required bool
}

// AlgorithmInfo is the catalog-listing view of one algorithm.
type AlgorithmInfo struct {
	Name       string
	Parameters []ParamInfo
}

// Catalog resolves an algorithm name to its spec.
type Catalog interface {
	Lookup(name string) (AlgorithmSpec, bool)
}

// ViewClient is the narrow slice of rpc.Client the controller needs to
// materialize initial dataset views; declared as an interface so tests
// can substitute a fake.
type ViewClient interface {
	CreateDataModelViews(ctx context.Context, requestID string, req rpc.CreateDataModelViewsRequest) ([]types.TableInfo, error)
	Close() error
}

// DialFunc opens a view-capable connection to a node.
type DialFunc func(nodeID, addr string) (ViewClient, error)

// Executor is the narrow slice of *executor.Executor the controller
// drives; declared as an interface so tests can substitute a fake without
// a real worker fleet.
type Executor interface {
	Run(ctx context.Context, req executor.RunRequest) (executor.Result, error)
}

// Registry is the narrow slice of *registry.Aggregator the controller
// reads; declared as an interface so tests can substitute a fixed
// snapshot.
type Registry interface {
	Snapshot() types.RegistrySnapshot
}

// Controller is C6, the facade that turns one validated request into a
// complete algorithm execution.
type Controller struct {
	registry         Registry
	catalog          Catalog
	executor         Executor
	broker           *events.Broker
	dial             DialFunc
	minRows          int
	protectLocalData bool
	dropNA           bool

	logger zerolog.Logger
}

// New builds a controller over its collaborators.
func New(reg Registry, catalog Catalog, exec Executor, broker *events.Broker, dial DialFunc, minRows int, protectLocalData bool) *Controller {
	return &Controller{
		registry:         reg,
		catalog:          catalog,
		executor:         exec,
		broker:           broker,
		dial:             dial,
		minRows:          minRows,
		protectLocalData: protectLocalData,
		dropNA:           true,
		logger:           log.WithComponent("controller"),
	}
}

// Run validates req against the current landscape snapshot, allocates a
// fresh context id, materializes each participating local node's dataset
// view, and drives the plan through the executor, per spec §4.6. The
// snapshot is captured once at the top and used throughout, so a mid-run
// aggregator refresh never perturbs node selection.
func (c *Controller) Run(ctx context.Context, requestID string, req Request) (executor.Result, error) {
	reqLog := log.WithRequestID(requestID)

	spec, ok := c.catalog.Lookup(req.Algorithm)
	if !ok {
		return executor.Result{}, ferrors.New(ferrors.BadUserInput, fmt.Sprintf("unknown algorithm %q", req.Algorithm))
	}

	snapshot := c.registry.Snapshot()

	if !snapshot.DataModelExists(req.DataModelKey) {
		return executor.Result{}, ferrors.New(ferrors.BadUserInput, fmt.Sprintf("data model %q not present in the landscape", req.DataModelKey))
	}
	if err := checkDatasetsCovered(snapshot, req.DataModelKey, req.Datasets); err != nil {
		return executor.Result{}, err
	}

	globalNode, ok := snapshot.GlobalNode()
	if !ok {
		return executor.Result{}, registry.ErrNoGlobalNode()
	}

	localNodeIDs := snapshot.NodeIDsWithAnyOfDatasets(req.DataModelKey, req.Datasets)
	if len(localNodeIDs) == 0 {
		return executor.Result{}, ferrors.New(ferrors.BadUserInput, "no local node holds any of the requested datasets")
	}
	sort.Strings(localNodeIDs)

	localNodes := make([]types.Node, 0, len(localNodeIDs))
	datasetsPerNode := make(map[string][]string, len(localNodeIDs))
	for _, id := range localNodeIDs {
		localNodes = append(localNodes, snapshot.Nodes[id])
		datasetsPerNode[id] = snapshot.NodeSpecificDatasets(id, req.DataModelKey, req.Datasets)
	}

	columns, err := spec.Columns(req)
	if err != nil {
		return executor.Result{}, err
	}

	contextID := uuid.NewString()
	ctxLog := reqLog.With().Str("context_id", contextID).Str("algorithm", req.Algorithm).Logger()
	c.broker.Publish(&events.Event{Type: events.EventContextCreated, ContextID: contextID})

	result, err := c.run(ctx, requestID, contextID, req, spec, globalNode, localNodes, datasetsPerNode, columns, ctxLog)

	c.broker.Publish(&events.Event{Type: events.EventContextReleased, ContextID: contextID})

	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
		ctxLog.Warn().Err(err).Msg("algorithm run failed")
	} else {
		ctxLog.Info().Msg("algorithm run completed")
	}
	metrics.AlgorithmRunsTotal.WithLabelValues(req.Algorithm, outcome).Inc()

	return result, err
}

func (c *Controller) run(ctx context.Context, requestID, contextID string, req Request, spec AlgorithmSpec,
	globalNode types.Node, localNodes []types.Node, datasetsPerNode map[string][]string, columns []string, ctxLog zerolog.Logger,
) (executor.Result, error) {
	initialViews, err := c.materializeViews(ctx, requestID, contextID, req.DataModelKey, localNodes, datasetsPerNode, columns)
	if err != nil {
		return executor.Result{}, err
	}

	plan, err := spec.BuildPlan(req)
	if err != nil {
		return executor.Result{}, err
	}

	ctxLog.Info().Int("local_nodes", len(localNodes)).Str("global_node", globalNode.ID).Msg("starting algorithm execution")

	return c.executor.Run(ctx, executor.RunRequest{
		RequestID:    requestID,
		ContextID:    contextID,
		Plan:         plan,
		LocalNodes:   localNodes,
		GlobalNode:   globalNode,
		InitialViews: initialViews,
	})
}

// materializeViews derives one joined dataset view per local node, scoped
// to that node's share of the requested datasets. checkMinRows enforces
// the configured floor so a dataset slice too small to analyze fails
// fast instead of producing a degenerate statistical result.
func (c *Controller) materializeViews(ctx context.Context, requestID, contextID, dataModelKey string, localNodes []types.Node, datasetsPerNode map[string][]string, columns []string) (map[string]types.TableInfo, error) {
	views := make(map[string]types.TableInfo, len(localNodes))
	for _, node := range localNodes {
		client, err := c.dial(node.ID, node.QueueEndpoint)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.KindOf(err), fmt.Sprintf("dial local node %s", node.ID), err)
		}

		viewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		resp, err := client.CreateDataModelViews(viewCtx, requestID, rpc.CreateDataModelViewsRequest{
			DataModelKey: dataModelKey,
			Datasets:     datasetsPerNode[node.ID],
			ColumnGroups: [][]string{columns},
			DropNA:       c.dropNA,
			CheckMinRows: true,
			MinRows:      c.minRows,
			PublicUser:   c.protectLocalData,
		})
		cancel()
		closeErr := client.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, ferrors.Wrap(ferrors.Unreachable, fmt.Sprintf("close connection to %s", node.ID), closeErr)
		}
		if len(resp) == 0 {
			return nil, ferrors.New(ferrors.RemoteInternal, fmt.Sprintf("node %s returned no view for the requested columns", node.ID))
		}
		views[node.ID] = resp[0]
		c.broker.Publish(&events.Event{Type: events.EventNodeTouched, ContextID: contextID, NodeID: node.ID})
	}
	return views, nil
}

// checkDatasetsCovered requires every requested dataset to be present on
// at least one LOCAL node, per spec §4.6 step 1.
func checkDatasetsCovered(snapshot types.RegistrySnapshot, dataModelKey string, datasets []string) error {
	locations := snapshot.DatasetLocations[dataModelKey]
	var missing []string
	for _, d := range datasets {
		if _, ok := locations[d]; !ok {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return ferrors.New(ferrors.BadUserInput, fmt.Sprintf("datasets not available for data model %q: %v", dataModelKey, missing))
	}
	return nil
}
