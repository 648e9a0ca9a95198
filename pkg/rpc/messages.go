package rpc

import "github.com/fedmesh/fedmesh/pkg/types"

// Every request below carries RequestID so worker-side logs and controller
// logs can be joined on the same field (see pkg/log.WithRequestID).

// GetNodeInfoRequest probes liveness and role.
type GetNodeInfoRequest struct {
	RequestID string `json:"request_id"`
}

// GetNodeInfoResponse reports the worker's self-described identity.
type GetNodeInfoResponse struct {
	NodeID string        `json:"node_id"`
	Role   types.NodeRole `json:"role"`
}

// GetDatasetsPerDataModelRequest lists the data models a worker holds data
// for, and the dataset codes plus labels within each.
type GetDatasetsPerDataModelRequest struct {
	RequestID string `json:"request_id"`
}

// DataModelDatasets is one data model's dataset inventory on a worker.
type DataModelDatasets struct {
	DataModelKey string            `json:"data_model_key"`
	Datasets     map[string]string `json:"datasets"` // code -> label
}

// GetDatasetsPerDataModelResponse is the worker's full local inventory.
type GetDatasetsPerDataModelResponse struct {
	DataModels []DataModelDatasets `json:"data_models"`
}

// GetDataModelCDEsRequest asks a worker for one data model's CDE schema.
type GetDataModelCDEsRequest struct {
	RequestID    string `json:"request_id"`
	DataModelKey string `json:"data_model_key"`
}

// GetDataModelCDEsResponse carries the CDEs keyed by code.
type GetDataModelCDEsResponse struct {
	CDEs map[string]types.CDE `json:"cdes"`
}

// CreateTableRequest asks a worker to materialize a new normal table.
type CreateTableRequest struct {
	RequestID string      `json:"request_id"`
	Name      types.TableName `json:"name"`
	Schema    types.Schema    `json:"schema"`
}

// CreateTableResponse echoes the created table's handle.
type CreateTableResponse struct {
	Table types.TableInfo `json:"table"`
}

// InsertRowsRequest appends rows to an existing table, column-major.
type InsertRowsRequest struct {
	RequestID string          `json:"request_id"`
	Table     types.TableName `json:"table"`
	Rows      [][]any         `json:"rows"`
}

// InsertRowsResponse reports how many rows landed.
type InsertRowsResponse struct {
	RowsInserted int `json:"rows_inserted"`
}

// CreateViewRequest derives a filtered, column-projected view from a base
// table, optionally dropping rows with NULLs and enforcing a minimum row
// count.
type CreateViewRequest struct {
	RequestID    string          `json:"request_id"`
	Base         types.TableName `json:"base"`
	Filter       string          `json:"filter,omitempty"`
	Columns      []string        `json:"columns"`
	DropNA       bool            `json:"drop_na"`
	CheckMinRows bool            `json:"check_min_rows"`
	MinRows      int             `json:"min_rows"`
}

// CreateViewResponse echoes the created view's handle.
type CreateViewResponse struct {
	Table types.TableInfo `json:"table"`
}

// CreateDataModelViewsRequest derives one view per requested data model
// column set, all scoped to the same dataset filter, in one round trip.
type CreateDataModelViewsRequest struct {
	RequestID    string     `json:"request_id"`
	DataModelKey string     `json:"data_model_key"`
	Datasets     []string   `json:"datasets"`
	ColumnGroups [][]string `json:"column_groups"`
	DropNA       bool       `json:"drop_na"`
	CheckMinRows bool       `json:"check_min_rows"`
	MinRows      int        `json:"min_rows"`
	// PublicUser, when true, asks the worker to read through its
	// restricted public-user DB role instead of its full-access role, so
	// the view it derives never exposes a row an algorithm step could use
	// to reconstruct an exact local row count. Set from the controller's
	// protect_local_data configuration.
	PublicUser bool `json:"public_user"`
}

// CreateDataModelViewsResponse returns one table per requested column group,
// in the same order.
type CreateDataModelViewsResponse struct {
	Tables []types.TableInfo `json:"tables"`
}

// CreateMergeTableRequest unions rows from same-schema tables across the
// nodes that hold them into a single local table handle.
type CreateMergeTableRequest struct {
	RequestID string            `json:"request_id"`
	Name      types.TableName   `json:"name"`
	Inputs    []types.TableName `json:"inputs"`
}

// CreateMergeTableResponse echoes the created merge table's handle.
type CreateMergeTableResponse struct {
	Table types.TableInfo `json:"table"`
}

// CreateRemoteTableRequest registers a pointer, on this worker, to a table
// that physically lives on fromNode, so it can be joined against locally.
type CreateRemoteTableRequest struct {
	RequestID string          `json:"request_id"`
	Name      types.TableName `json:"name"`
	Schema    types.Schema    `json:"schema"`
	FromNode  string          `json:"from_node"`
}

// CreateRemoteTableResponse echoes the created remote table's handle.
type CreateRemoteTableResponse struct {
	Table types.TableInfo `json:"table"`
}

// GetTableDataRequest fetches a table's full contents verbatim, used to
// read the terminal step's output.
type GetTableDataRequest struct {
	RequestID string          `json:"request_id"`
	Table     types.TableName `json:"table"`
}

// GetTableDataResponse carries the rows, column-major alongside the schema.
type GetTableDataResponse struct {
	Schema types.Schema `json:"schema"`
	Rows   [][]any      `json:"rows"`
}

// PosArg and KwArg carry a UDF positional/keyword argument: either a table
// reference (relation/tensor/state/transfer kind already materialized on
// this worker) or a literal value.
type PosArg struct {
	TableRef *types.TableName `json:"table_ref,omitempty"`
	Literal  any              `json:"literal,omitempty"`
}

// ArtifactResult is the wire form of one udf.Result: the output table
// C3 named for this position, plus, for a secure_transfer output split
// for SMPC, the companion template/sum/min/max tables that back it.
type ArtifactResult struct {
	Table    types.TableName  `json:"table"`
	Template *types.TableName `json:"template,omitempty"`
	SumOp    *types.TableName `json:"sum_op,omitempty"`
	MinOp    *types.TableName `json:"min_op,omitempty"`
	MaxOp    *types.TableName `json:"max_op,omitempty"`
}

// Artifact is the wire form of udf.Artifact: the SQL-level contract C3
// generated for one runUDF call, carried alongside the call's arguments so
// the worker has the function definition and invocation text in hand
// rather than having to reconstruct them from PosArgs/KwArgs itself.
type Artifact struct {
	Definition string           `json:"definition"`
	Invocation string           `json:"invocation"`
	Results    []ArtifactResult `json:"results"`
}

// RunUDFRequest asks a worker to execute a registered UDF by name against
// already-materialized inputs, producing the named outputs. Artifact
// carries the SQL text C3 generated for this specific call; OutputNames
// and OutputSchema stay alongside it since the worker consults them
// independent of Artifact.Results when a declared output's schema is
// inferred rather than static.
type RunUDFRequest struct {
	RequestID    string            `json:"request_id"`
	FuncName     string            `json:"func_name"`
	PosArgs      []PosArg          `json:"pos_args"`
	KwArgs       map[string]PosArg `json:"kw_args"`
	UseSMPC      bool              `json:"use_smpc"`
	Artifact     Artifact          `json:"artifact"`
	OutputSchema []types.Schema    `json:"output_schema,omitempty"`
	OutputNames  []types.TableName `json:"output_names"`
}

// RunUDFResponse carries one table handle per declared output, in order.
type RunUDFResponse struct {
	Results []types.TableInfo `json:"results"`
}

// CleanupRequest asks a worker to drop every artifact tagged with a
// context id, in MERGE -> REMOTE -> VIEW -> NORMAL order.
type CleanupRequest struct {
	RequestID string `json:"request_id"`
	ContextID string `json:"context_id"`
}

// CleanupResponse is empty; a nil error is the only success signal needed.
type CleanupResponse struct{}
