// Package rpc is the Worker RPC Client (C1): a narrow, typed surface
// against one worker's task queue, over gRPC with a JSON wire codec in
// place of generated protobuf stubs. Every method bounds itself to the
// configured timeout and classifies failures into ferrors.Kind so C4 can
// decide whether to retry.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// service is the gRPC service name every method is invoked against. There
// is no .proto file behind it; method paths are just string constants
// shared by client and worker-side server.
const service = "/fedmesh.Worker/"

// Client is a connection to a single worker.
type Client struct {
	NodeID string
	conn   *grpc.ClientConn

	callTimeout   time.Duration
	udfCallTimeout time.Duration
}

// Dial opens a connection to a worker at addr. The worker fleet is a
// closed set of trusted internal nodes with no certificate-issuance
// membership model, so the channel runs over plaintext credentials.
func Dial(addr, nodeID string, callTimeout, udfCallTimeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Unreachable, fmt.Sprintf("dial worker %s at %s", nodeID, addr), err)
	}
	return &Client{
		NodeID:         nodeID,
		conn:           conn,
		callTimeout:    callTimeout,
		udfCallTimeout: udfCallTimeout,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(ctx context.Context, method string, req, resp any, timeout time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.conn.Invoke(callCtx, service+method, req, resp, grpc.CallContentSubtype(codecName))
	if err == nil {
		return nil
	}
	return classify(c.NodeID, method, err)
}

// classify maps a gRPC status into the engine's closed error-kind set.
func classify(nodeID, method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return ferrors.Wrap(ferrors.Unreachable, fmt.Sprintf("worker %s: %s", nodeID, method), err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return ferrors.Wrap(ferrors.Timeout, fmt.Sprintf("worker %s: %s timed out", nodeID, method), err)
	case codes.Unavailable, codes.Canceled:
		return ferrors.Wrap(ferrors.Unreachable, fmt.Sprintf("worker %s: %s unreachable", nodeID, method), err)
	case codes.InvalidArgument, codes.FailedPrecondition:
		return ferrors.Wrap(ferrors.BadUserInput, fmt.Sprintf("worker %s: %s rejected request", nodeID, method), err)
	default:
		return ferrors.Wrap(ferrors.RemoteInternal, fmt.Sprintf("worker %s: %s failed", nodeID, method), err)
	}
}

// GetNodeInfo probes liveness and reports the worker's role.
func (c *Client) GetNodeInfo(ctx context.Context, requestID string) (GetNodeInfoResponse, error) {
	var resp GetNodeInfoResponse
	err := c.invoke(ctx, "GetNodeInfo", &GetNodeInfoRequest{RequestID: requestID}, &resp, c.callTimeout)
	return resp, err
}

// GetDatasetsPerDataModel lists the data models this worker holds data
// for, and the datasets within each.
func (c *Client) GetDatasetsPerDataModel(ctx context.Context, requestID string) (GetDatasetsPerDataModelResponse, error) {
	var resp GetDatasetsPerDataModelResponse
	err := c.invoke(ctx, "GetDatasetsPerDataModel", &GetDatasetsPerDataModelRequest{RequestID: requestID}, &resp, c.callTimeout)
	return resp, err
}

// GetDataModelCDEs fetches one data model's CDE schema from this worker.
func (c *Client) GetDataModelCDEs(ctx context.Context, requestID, dataModelKey string) (GetDataModelCDEsResponse, error) {
	var resp GetDataModelCDEsResponse
	err := c.invoke(ctx, "GetDataModelCDEs", &GetDataModelCDEsRequest{RequestID: requestID, DataModelKey: dataModelKey}, &resp, c.callTimeout)
	return resp, err
}

// CreateTable materializes a new normal table with the given schema.
func (c *Client) CreateTable(ctx context.Context, requestID string, name types.TableName, schema types.Schema) (types.TableInfo, error) {
	var resp CreateTableResponse
	err := c.invoke(ctx, "CreateTable", &CreateTableRequest{RequestID: requestID, Name: name, Schema: schema}, &resp, c.callTimeout)
	return resp.Table, err
}

// InsertRows appends column-major rows to an existing table.
func (c *Client) InsertRows(ctx context.Context, requestID string, table types.TableName, rows [][]any) (int, error) {
	var resp InsertRowsResponse
	err := c.invoke(ctx, "InsertRows", &InsertRowsRequest{RequestID: requestID, Table: table, Rows: rows}, &resp, c.callTimeout)
	return resp.RowsInserted, err
}

// CreateView derives a filtered, column-projected view from a base table.
func (c *Client) CreateView(ctx context.Context, requestID string, req CreateViewRequest) (types.TableInfo, error) {
	req.RequestID = requestID
	var resp CreateViewResponse
	err := c.invoke(ctx, "CreateView", &req, &resp, c.callTimeout)
	return resp.Table, err
}

// CreateDataModelViews derives several views, all scoped to the same
// dataset filter, in one round trip.
func (c *Client) CreateDataModelViews(ctx context.Context, requestID string, req CreateDataModelViewsRequest) ([]types.TableInfo, error) {
	req.RequestID = requestID
	var resp CreateDataModelViewsResponse
	err := c.invoke(ctx, "CreateDataModelViews", &req, &resp, c.callTimeout)
	return resp.Tables, err
}

// CreateMergeTable unions rows of same-schema inputs into one local table.
func (c *Client) CreateMergeTable(ctx context.Context, requestID string, name types.TableName, inputs []types.TableName) (types.TableInfo, error) {
	var resp CreateMergeTableResponse
	err := c.invoke(ctx, "CreateMergeTable", &CreateMergeTableRequest{RequestID: requestID, Name: name, Inputs: inputs}, &resp, c.callTimeout)
	return resp.Table, err
}

// CreateRemoteTable registers a pointer to a table that physically lives
// on fromNode.
func (c *Client) CreateRemoteTable(ctx context.Context, requestID string, name types.TableName, schema types.Schema, fromNode string) (types.TableInfo, error) {
	var resp CreateRemoteTableResponse
	err := c.invoke(ctx, "CreateRemoteTable", &CreateRemoteTableRequest{RequestID: requestID, Name: name, Schema: schema, FromNode: fromNode}, &resp, c.callTimeout)
	return resp.Table, err
}

// GetTableData fetches a table's full contents verbatim.
func (c *Client) GetTableData(ctx context.Context, requestID string, table types.TableName) (GetTableDataResponse, error) {
	var resp GetTableDataResponse
	err := c.invoke(ctx, "GetTableData", &GetTableDataRequest{RequestID: requestID, Table: table}, &resp, c.callTimeout)
	return resp, err
}

// RunUDF executes a registered UDF against already-materialized inputs.
// It runs under the longer udfCallTimeout, since a UDF body can take far
// longer than a metadata call.
func (c *Client) RunUDF(ctx context.Context, requestID string, req RunUDFRequest) ([]types.TableInfo, error) {
	req.RequestID = requestID
	var resp RunUDFResponse
	err := c.invoke(ctx, "RunUDF", &req, &resp, c.udfCallTimeout)
	return resp.Results, err
}

// Cleanup asks the worker to drop every artifact tagged with contextID. It
// is idempotent: calling it twice for the same context, or for a context
// the worker never saw, both succeed.
func (c *Client) Cleanup(ctx context.Context, requestID, contextID string) error {
	var resp CleanupResponse
	return c.invoke(ctx, "Cleanup", &CleanupRequest{RequestID: requestID, ContextID: contextID}, &resp, c.callTimeout)
}
