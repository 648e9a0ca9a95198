package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin HTTP client over the controller's facade (pkg/api).
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client dialing the facade at addr (e.g. "localhost:8000").
func New(addr string) *Client {
	return &Client{baseURL: "http://" + addr, http: &http.Client{}}
}

// InputData mirrors the facade's POST /algorithms/{name} inputdata block.
type InputData struct {
	DataModel string          `json:"data_model"`
	Datasets  []string        `json:"datasets"`
	X         []string        `json:"x,omitempty"`
	Y         []string        `json:"y,omitempty"`
	Filters   json.RawMessage `json:"filters,omitempty"`
}

// AlgorithmRequest is the full POST /algorithms/{name} body.
type AlgorithmRequest struct {
	InputData  InputData      `json:"inputdata"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Flags      map[string]any `json:"flags,omitempty"`
}

// Column is one column of an AlgorithmResult's schema.
type Column struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
}

// AlgorithmResult is an algorithm's terminal result, as the facade
// serializes it.
type AlgorithmResult struct {
	Schema []Column `json:"schema"`
	Rows   [][]any  `json:"rows"`
}

// ParamInfo describes one named algorithm parameter, mirroring
// controller.ParamInfo.
type ParamInfo struct {
	Name     string
	Type     string
	Required bool
}

// AlgorithmInfo is one GET /algorithms catalog entry, mirroring
// controller.AlgorithmInfo.
type AlgorithmInfo struct {
	Name       string
	Parameters []ParamInfo
}

// StatusError is returned when the facade responds with a non-2xx status;
// Status lets a caller distinguish a 460 (bad user input) from a 500
// (everything else) without parsing Message.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("facade responded %d: %s", e.Status, e.Message)
}

// RunAlgorithm posts req to /algorithms/{name} and decodes the terminal
// result. An algorithm run can take minutes across a large worker fleet,
// so its default timeout is long relative to the catalog/dataset calls.
func (c *Client) RunAlgorithm(ctx context.Context, name string, req AlgorithmRequest) (AlgorithmResult, error) {
	var result AlgorithmResult
	if err := c.doJSON(ctx, 5*time.Minute, http.MethodPost, "/algorithms/"+name, req, &result); err != nil {
		return AlgorithmResult{}, err
	}
	return result, nil
}

// ListAlgorithms returns the algorithm catalog the controller can dispatch.
func (c *Client) ListAlgorithms(ctx context.Context) ([]AlgorithmInfo, error) {
	var infos []AlgorithmInfo
	if err := c.doJSON(ctx, 10*time.Second, http.MethodGet, "/algorithms", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// ListDatasets returns the flattened registry view: data model key to the
// datasets currently available under it.
func (c *Client) ListDatasets(ctx context.Context) (map[string][]string, error) {
	var datasets map[string][]string
	if err := c.doJSON(ctx, 10*time.Second, http.MethodGet, "/datasets", nil, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// doJSON issues one request against the facade, applying defaultTimeout
// unless ctx already carries an earlier deadline, and decodes a 2xx JSON
// response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, defaultTimeout time.Duration, method, path string, body, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &StatusError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	var envelope struct {
		Error string `json:"error"`
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return ""
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return string(raw)
}
