// Package smpc is a thin client for the external secure multi-party
// computation cluster: it loads per-local operation tables into a job and
// polls for the aggregated result. The cluster is an external collaborator
// (out of scope to implement); this package only talks to its job API.
//
// No transport library in the rest of the stack fits here: the worker RPC
// client uses gRPC against a fleet this engine owns the wire format for
// (pkg/rpc), but the SMPC coordinator is a REST job-submission endpoint
// external to this system, and no HTTP client library appears anywhere in
// the example pack. net/http is used directly rather than inventing a
// dependency nothing in the corpus reaches for.
package smpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/types"
)

// Operation is one of the three aggregations a secure-transfer output may
// declare.
type Operation string

const (
	OpSum Operation = "sum"
	OpMin Operation = "min"
	OpMax Operation = "max"
)

// JobHandle identifies one submitted aggregation job.
type JobHandle struct {
	JobID     string
	Operation Operation
}

// Client talks to one SMPC coordinator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client against the coordinator's base URL.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{}}
}

type loadDataRequest struct {
	Operation Operation          `json:"operation"`
	Tables    []types.TableName  `json:"tables"`
}

type loadDataResponse struct {
	JobID string `json:"job_id"`
}

// LoadData hands the per-local operation tables for one operation to the
// cluster and returns a job handle to poll.
func (c *Client) LoadData(ctx context.Context, op Operation, tables []types.TableName) (JobHandle, error) {
	body, err := json.Marshal(loadDataRequest{Operation: op, Tables: tables})
	if err != nil {
		return JobHandle{}, ferrors.Wrap(ferrors.SMPCFailure, "encode smpc load-data request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return JobHandle{}, ferrors.Wrap(ferrors.SMPCFailure, "build smpc load-data request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobHandle{}, ferrors.Wrap(ferrors.Unreachable, "smpc coordinator unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return JobHandle{}, ferrors.New(ferrors.SMPCFailure, fmt.Sprintf("smpc load-data rejected, status %d", resp.StatusCode))
	}

	var out loadDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return JobHandle{}, ferrors.Wrap(ferrors.SMPCFailure, "decode smpc load-data response", err)
	}
	return JobHandle{JobID: out.JobID, Operation: op}, nil
}

type jobResultResponse struct {
	Status string          `json:"status"` // "pending" | "done" | "failed"
	Table  types.TableInfo `json:"table"`
	Error  string          `json:"error,omitempty"`
}

// PollResult waits for a job's aggregated result, polling at a fixed
// interval until it completes, fails, or timeout elapses.
func (c *Client) PollResult(ctx context.Context, job JobHandle, timeout time.Duration) (types.TableInfo, error) {
	deadline := time.Now().Add(timeout)
	const pollInterval = 500 * time.Millisecond

	for {
		result, done, err := c.pollOnce(ctx, job)
		if err != nil {
			return types.TableInfo{}, err
		}
		if done {
			return result, nil
		}
		if time.Now().After(deadline) {
			return types.TableInfo{}, ferrors.New(ferrors.Timeout, fmt.Sprintf("smpc job %s did not complete within %s", job.JobID, timeout))
		}
		select {
		case <-ctx.Done():
			return types.TableInfo{}, ferrors.Wrap(ferrors.Cancelled, "smpc poll cancelled", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, job JobHandle) (types.TableInfo, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+job.JobID, nil)
	if err != nil {
		return types.TableInfo{}, false, ferrors.Wrap(ferrors.SMPCFailure, "build smpc poll request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.TableInfo{}, false, ferrors.Wrap(ferrors.Unreachable, "smpc coordinator unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.TableInfo{}, false, ferrors.New(ferrors.SMPCFailure, fmt.Sprintf("smpc poll failed, status %d", resp.StatusCode))
	}

	var out jobResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.TableInfo{}, false, ferrors.Wrap(ferrors.SMPCFailure, "decode smpc poll response", err)
	}

	switch out.Status {
	case "done":
		return out.Table, true, nil
	case "failed":
		return types.TableInfo{}, false, ferrors.New(ferrors.SMPCFailure, fmt.Sprintf("smpc job %s failed: %s", job.JobID, out.Error))
	default:
		return types.TableInfo{}, false, nil
	}
}
