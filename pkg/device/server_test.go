package device

import (
	"context"
	"encoding/json"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"scadabridge/pkg/apis"
	"scadabridge/pkg/apis/response"
	"scadabridge/pkg/storage"
	"strings"
	"testing"
)

type fakeController struct {
	doc       *storage.Document
	loadErr   error
	updateErr error
	patches   []string
	result    *Result
	device    string
	action    string
}

func (f *fakeController) Apply(_ context.Context, deviceKey, actionName string) *Result {
	f.device, f.action = deviceKey, actionName
	return f.result
}

func (f *fakeController) Snapshot() (*storage.Document, error) {
	return f.doc, f.loadErr
}

func (f *fakeController) Update(patch []byte) (*storage.Document, error) {
	f.patches = append(f.patches, string(patch))
	return f.doc, f.updateErr
}

func newRouter(mgr ActionController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	InstallHandler(router.Group("/api"), mgr)
	return router
}

func do(router *gin.Engine, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	s := statusResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	return s
}

func TestGetData(t *testing.T) {
	f := &fakeController{doc: storage.NewDefaultDocument()}
	router := newRouter(f)

	w := do(router, http.MethodGet, "/api/data", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	raw := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	for _, key := range storage.RequiredSections {
		assert.Contains(t, raw, key)
	}

	f.loadErr = errors.New("disk gone")
	w = do(router, http.MethodGet, "/api/data", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "disk gone"}`, w.Body.String())
}

func TestUpdateData(t *testing.T) {
	f := &fakeController{doc: storage.NewDefaultDocument()}
	router := newRouter(f)

	w := do(router, http.MethodPost, "/api/update", "application/json", `{"plc2": {"progress": 10}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "success"}`, w.Body.String())
	assert.Equal(t, []string{`{"plc2": {"progress": 10}}`}, f.patches)

	w = do(router, http.MethodPost, "/api/update", "application/json", `{"plc2": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, statusResponse{Status: "error", Message: "Datos JSON no válidos"}, decodeStatus(t, w))

	w = do(router, http.MethodPost, "/api/update", "text/plain", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.updateErr = response.ErrInvalidUpdate(errors.New("bad shape"))
	w = do(router, http.MethodPost, "/api/update", "application/json; charset=utf-8", `{"plc1": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decodeStatus(t, w).Status)

	f.updateErr = response.ErrStateStore(errors.New("disk full"))
	w = do(router, http.MethodPost, "/api/update", "application/json", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "No se pudo guardar el estado", decodeStatus(t, w).Message)
}

func TestPressButton(t *testing.T) {
	doc := storage.NewDefaultDocument()
	doc.Conveyor.State = storage.ConveyorPowered
	f := &fakeController{result: &Result{Success: true, RequestID: "req-1", Snapshot: doc}}
	router := newRouter(f)

	w := do(router, http.MethodPost, "/api/plc1/button", "application/json", `{"action": "encender"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plc1", f.device)
	assert.Equal(t, "encender", f.action)
	assert.Equal(t, "req-1", w.Header().Get(apis.RequestID))
	got := &storage.Document{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), got))
	assert.Equal(t, doc, got)

	f.result = &Result{RequestID: "req-2", Reason: "Banda: PLC no conectado", Err: response.ErrDeviceUnavailable("Banda", nil)}
	w = do(router, http.MethodPost, "/api/conveyor/button", "application/json", `{"action": "forward"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, statusResponse{Status: "error", Message: "Banda: PLC no conectado"}, decodeStatus(t, w))

	f.result = &Result{RequestID: "req-3", Reason: "No se pudo guardar el estado", Err: response.ErrStateStore(errors.New("disk full"))}
	w = do(router, http.MethodPost, "/api/mixer/button", "application/json", `{"action": "reset"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(router, http.MethodPost, "/api/plc1/button", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Acción no especificada", decodeStatus(t, w).Message)

	w = do(router, http.MethodPost, "/api/plc1/button", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Datos JSON no válidos", decodeStatus(t, w).Message)
}

func TestPressButtonEndToEnd(t *testing.T) {
	p := newPlant(t, "PLC1")
	router := newRouter(p.mgr)

	w := do(router, http.MethodPost, "/api/plc1/button", "application/json", `{"action": "encender"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc := &storage.Document{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), doc))
	assert.Equal(t, storage.ConveyorPowered, doc.Conveyor.State)
	assert.NotEmpty(t, w.Header().Get(apis.RequestID))

	w = do(router, http.MethodPost, "/api/robot/button", "application/json", `{"action": "toggle"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Robot: PLC no conectado", decodeStatus(t, w).Message)

	w = do(router, http.MethodGet, "/api/data", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), doc))
	assert.Len(t, doc.Log, 3)
}
