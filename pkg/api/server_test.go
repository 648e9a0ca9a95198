package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fedmesh/fedmesh/pkg/controller"
	"github.com/fedmesh/fedmesh/pkg/executor"
	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"github.com/fedmesh/fedmesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	result executor.Result
	err    error
	gotReq controller.Request
}

func (f *fakeController) Run(ctx context.Context, requestID string, req controller.Request) (executor.Result, error) {
	f.gotReq = req
	return f.result, f.err
}

type fakeRegistry struct {
	snapshot types.RegistrySnapshot
}

func (f fakeRegistry) Snapshot() types.RegistrySnapshot { return f.snapshot }

type fakeCatalog struct {
	infos []controller.AlgorithmInfo
}

func (f fakeCatalog) List() []controller.AlgorithmInfo { return f.infos }

func TestHandleRunAlgorithmHappyPath(t *testing.T) {
	ctrl := &fakeController{result: executor.Result{
		Schema: types.Schema{{Name: "t_stat", DType: types.DTypeReal}},
		Rows:   [][]any{{1.96}},
	}}
	srv := NewServer(ctrl, fakeRegistry{}, fakeCatalog{})

	body := `{"inputdata":{"data_model":"dm:0.1","datasets":["ds1","ds2"],"x":["x"],"y":["y"]},"parameters":{"alpha":0.05}}`
	req := httptest.NewRequest(http.MethodPost, "/algorithms/paired_ttest", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paired_ttest", ctrl.gotReq.Algorithm)
	assert.Equal(t, "dm:0.1", ctrl.gotReq.DataModelKey)
	assert.Equal(t, []string{"ds1", "ds2"}, ctrl.gotReq.Datasets)
	assert.Equal(t, 0.05, ctrl.gotReq.Parameters["alpha"])

	var resp resultResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, [][]any{{1.96}}, resp.Rows)
	assert.Equal(t, "t_stat", resp.Schema[0].Name)

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestHandleRunAlgorithmMalformedBodyReturns400(t *testing.T) {
	srv := NewServer(&fakeController{}, fakeRegistry{}, fakeCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/algorithms/paired_ttest", bytes.NewBufferString(`{not json`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRunAlgorithmBadUserInputReturns460(t *testing.T) {
	ctrl := &fakeController{err: ferrors.New(ferrors.BadUserInput, "unknown data model")}
	srv := NewServer(ctrl, fakeRegistry{}, fakeCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/algorithms/paired_ttest", bytes.NewBufferString(`{"inputdata":{"data_model":"bogus","datasets":["ds1"]}}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, 460, w.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "unknown data model")
}

func TestHandleRunAlgorithmRemoteInternalReturns500(t *testing.T) {
	ctrl := &fakeController{err: ferrors.New(ferrors.RemoteInternal, "worker database error")}
	srv := NewServer(ctrl, fakeRegistry{}, fakeCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/algorithms/pca", bytes.NewBufferString(`{"inputdata":{"data_model":"dm:0.1","datasets":["ds1"]}}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleRunAlgorithmPropagatesRequestIDHeader(t *testing.T) {
	ctrl := &fakeController{}
	srv := NewServer(ctrl, fakeRegistry{}, fakeCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/algorithms/pca", bytes.NewBufferString(`{"inputdata":{"data_model":"dm:0.1","datasets":["ds1"]}}`))
	req.Header.Set("X-Request-Id", "req-fixed-1")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "req-fixed-1", w.Header().Get("X-Request-Id"))
}

func TestHandleListAlgorithms(t *testing.T) {
	cat := fakeCatalog{infos: []controller.AlgorithmInfo{
		{Name: "paired_ttest", Parameters: []controller.ParamInfo{{Name: "alpha", Type: "float", Required: true}}},
		{Name: "pca"},
	}}
	srv := NewServer(&fakeController{}, fakeRegistry{}, cat)

	req := httptest.NewRequest(http.MethodGet, "/algorithms", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var infos []controller.AlgorithmInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&infos))
	assert.Len(t, infos, 2)
	assert.Equal(t, "paired_ttest", infos[0].Name)
}

func TestHandleListDatasets(t *testing.T) {
	snapshot := types.RegistrySnapshot{
		DatasetLocations: map[string]map[string]string{
			"dm:0.1": {"ds1": "local-a", "ds2": "local-b"},
		},
	}
	srv := NewServer(&fakeController{}, fakeRegistry{snapshot: snapshot}, fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/datasets", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var datasets map[string][]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&datasets))
	assert.ElementsMatch(t, []string{"ds1", "ds2"}, datasets["dm:0.1"])
}

func TestStatusForErrorMapping(t *testing.T) {
	assert.Equal(t, 460, statusForError(ferrors.New(ferrors.BadUserInput, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusForError(ferrors.New(ferrors.Unreachable, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusForError(ferrors.New(ferrors.UDFContractViolation, "x")))
}
