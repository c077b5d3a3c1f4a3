package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canmlio/internal/decode"
	apperrors "canmlio/internal/errors"
	"canmlio/internal/services"
	"canmlio/internal/shared/testutil"
)

type mockConvertService struct {
	result  *services.ConvertResult
	err     error
	lastReq services.ConvertRequest
	calls   int
}

func (m *mockConvertService) Convert(ctx context.Context, req services.ConvertRequest, reporter decode.Reporter) (*services.ConvertResult, error) {
	m.lastReq = req
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockDictionaryService struct {
	summary *services.DictionarySummary
	err     error
}

func (m *mockDictionaryService) Inspect(ctx context.Context, sources []string, namespaced bool) (*services.DictionarySummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func newTestRouter(t *testing.T, convert ConvertServiceInterface, dict DictionaryServiceInterface) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewRouter(RouterConfig{
		Logger:     logger,
		Convert:    convert,
		Dictionary: dict,
	})
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validConvertBody() map[string]interface{} {
	return map[string]interface{}{
		"dictionaries": []string{"drive.yml"},
		"capture":      "trace.log",
		"output":       "out.csv",
	}
}

func TestConvertEndpoint(t *testing.T) {
	svc := &mockConvertService{result: &services.ConvertResult{
		RunID:   "run-1",
		Output:  "out.csv",
		Format:  "csv",
		Rows:    42,
		Columns: []string{"timestamp", "SpeedKph"},
	}}
	router := newTestRouter(t, svc, nil)

	rec := postJSON(t, router, "/api/convert", validConvertBody())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "trace.log", svc.lastReq.Capture)

	var result services.ConvertResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 42, result.Rows)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestConvertEndpoint_MalformedJSON(t *testing.T) {
	svc := &mockConvertService{}
	router := newTestRouter(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestConvertEndpoint_MissingFields(t *testing.T) {
	svc := &mockConvertService{}
	router := newTestRouter(t, svc, nil)

	rec := postJSON(t, router, "/api/convert", map[string]interface{}{
		"capture": "trace.log",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls, "validation rejects before the service runs")
}

func TestConvertEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing capture", apperrors.NewNotFoundError("capture log trace.log"), http.StatusNotFound},
		{"duplicate expected", apperrors.NewDuplicateNameError("expected signal", []string{"A"}), http.StatusBadRequest},
		{"unknown dtype signal", apperrors.NewUnknownSignalError("B"), http.StatusBadRequest},
		{"bad dictionary", apperrors.NewFormatError("invalid DBC", nil), http.StatusUnprocessableEntity},
		{"sink failure", apperrors.NewWriteError("disk full", nil), http.StatusInternalServerError},
		{"stream failure", apperrors.NewProcessingError("read failed", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &mockConvertService{err: tt.err}, nil)
			rec := postJSON(t, router, "/api/convert", validConvertBody())

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var p problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.want, p.Status)
			assert.NotEmpty(t, p.RequestID)
		})
	}
}

func TestDictionaryInspectEndpoint(t *testing.T) {
	dict := &mockDictionaryService{summary: &services.DictionarySummary{
		Sources:     []string{"drive.yml"},
		SignalCount: 2,
	}}
	router := newTestRouter(t, nil, dict)

	rec := postJSON(t, router, "/api/dictionary/inspect", map[string]interface{}{
		"sources": []string{"drive.yml"},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var summary services.DictionarySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.SignalCount)
}

func TestDictionaryInspectEndpoint_EmptySources(t *testing.T) {
	router := newTestRouter(t, nil, &mockDictionaryService{})

	rec := postJSON(t, router, "/api/dictionary/inspect", map[string]interface{}{
		"sources": []string{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestRequestIDPropagation(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}
