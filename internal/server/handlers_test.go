package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"saistats/internal/dataset"
	"saistats/internal/engine"
	"saistats/internal/faults"
	"saistats/internal/handoff"
	"saistats/internal/table"
)

type runnerFunc func(ctx context.Context, a engine.Analysis, ds *dataset.Dataset) (*table.Table, error)

func (f runnerFunc) Invoke(ctx context.Context, a engine.Analysis, ds *dataset.Dataset) (*table.Table, error) {
	return f(ctx, a, ds)
}

// liveRunner dispatches in-process instead of spawning the worker.
func liveRunner() AnalysisRunner {
	return runnerFunc(func(ctx context.Context, a engine.Analysis, ds *dataset.Dataset) (*table.Table, error) {
		opts, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		return engine.Execute(a.Kind(), ds, opts)
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func newTestServer(t *testing.T, runner AnalysisRunner) (*Server, *http.ServeMux) {
	t.Helper()
	store := handoff.NewStore(time.Minute, zap.NewNop())
	t.Cleanup(store.Close)
	s := New(runner, store, nil, 0, zap.NewNop())
	return s, s.Routes()
}

func uploadCSV(t *testing.T, mux *http.ServeMux, csv string) envelope {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "data.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	return env
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func get(t *testing.T, mux *http.ServeMux, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

const sampleCSV = "A,B,Name\n1,4,alice\n2,5,bob\n3,6,carol\n"

func TestUploadDescribesWorkbook(t *testing.T) {
	_, mux := newTestServer(t, liveRunner())
	env := uploadCSV(t, mux, sampleCSV)

	var info workbookInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "data.csv", info.FileName)
	assert.Equal(t, []string{"A", "B", "Name"}, info.Headers)
	assert.Equal(t, []string{"A", "B"}, info.NumericColumns)
	assert.Equal(t, 3, info.RowCount)
}

func TestSheetsWithoutUpload(t *testing.T) {
	_, mux := newTestServer(t, liveRunner())
	rec, env := get(t, mux, "/api/sheets")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, string(faults.CodeBadParameter), env.Code)
}

func TestAnalyzeRoundTrip(t *testing.T) {
	_, mux := newTestServer(t, liveRunner())
	uploadCSV(t, mux, sampleCSV)

	rec, env := postJSON(t, mux, "/api/analyze",
		`{"analysis":"descriptive","columns":["A","B"],"options":{"ignore_missing":true}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	require.NotEmpty(t, issued.Token)

	rec, env = get(t, mux, "/api/result/"+issued.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var result table.Table
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, []string{"Variable", "Mean", "SD", "Min", "Max"}, result.Headers)
	assert.Equal(t, []any{"A", "2.000", "1.000", "1.000", "3.000"}, result.Rows[0])

	// The token is single use.
	rec, env = get(t, mux, "/api/result/"+issued.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(faults.CodeTokenNotFound), env.Code)
}

func TestAnalyzeDesignNeedsNoUpload(t *testing.T) {
	_, mux := newTestServer(t, liveRunner())

	rec, env := postJSON(t, mux, "/api/analyze",
		`{"analysis":"design","options":{"family":"two-sample-t","alpha":0.05,"power":0.8}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))

	_, env = get(t, mux, "/api/result/"+issued.Token)
	var result table.Table
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "63", result.Rows[0][4])
}

func TestAnalyzeValidationFailures(t *testing.T) {
	_, mux := newTestServer(t, liveRunner())
	uploadCSV(t, mux, sampleCSV)

	cases := []struct {
		name   string
		body   string
		status int
		code   faults.Code
	}{
		{"unknown analysis", `{"analysis":"manova","columns":["A"]}`, http.StatusBadRequest, faults.CodeUnknownAnalysis},
		{"unknown column", `{"analysis":"descriptive","columns":["Z"]}`, http.StatusBadRequest, faults.CodeUnknownColumn},
		{"empty selection", `{"analysis":"descriptive","columns":[]}`, http.StatusBadRequest, faults.CodeEmptySelection},
		{"too few columns", `{"analysis":"correlation","columns":["A"]}`, http.StatusBadRequest, faults.CodeTooFewColumns},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := postJSON(t, mux, "/api/analyze", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, string(tc.code), env.Code)
		})
	}
}

func TestAnalyzeEngineFaultStatuses(t *testing.T) {
	cases := []struct {
		name   string
		fault  *faults.Fault
		status int
		opaque bool
	}{
		{"timeout", faults.New(faults.Timeout, faults.CodeEngineTimeout, "analysis exceeded 30s"), http.StatusGatewayTimeout, false},
		{"engine exit", faults.New(faults.EngineFailure, faults.CodeEngineExit, "singular matrix"), http.StatusBadGateway, false},
		{"contract", faults.Contractf(faults.CodeOutputUnreadable, "decode output: unexpected EOF"), http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := runnerFunc(func(ctx context.Context, a engine.Analysis, ds *dataset.Dataset) (*table.Table, error) {
				return nil, tc.fault
			})
			_, mux := newTestServer(t, runner)
			uploadCSV(t, mux, sampleCSV)

			rec, env := postJSON(t, mux, "/api/analyze", `{"analysis":"descriptive","columns":["A"]}`)
			assert.Equal(t, tc.status, rec.Code)
			if tc.opaque {
				// Internal detail stays out of the response.
				assert.Equal(t, "internal error", env.Error)
			} else {
				assert.Equal(t, tc.fault.Message, env.Error)
			}
		})
	}
}

func TestAnalyzeCanceledRequest(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, a engine.Analysis, ds *dataset.Dataset) (*table.Table, error) {
		return nil, fmt.Errorf("invoke: %w", context.Canceled)
	})
	_, mux := newTestServer(t, runner)
	uploadCSV(t, mux, sampleCSV)

	rec, env := postJSON(t, mux, "/api/analyze", `{"analysis":"descriptive","columns":["A"]}`)
	assert.Equal(t, statusClientClosedRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Empty(t, env.Code)
}

func TestResultViewer(t *testing.T) {
	s, mux := newTestServer(t, liveRunner())

	result := table.New("Variable", "Mean")
	result.MustAppend("A", "2.000")
	result.Rows = append(result.Rows, table.SectionRow("Details", 2))
	token, err := s.store.Issue(result)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result?token="+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "2.000")
	assert.Contains(t, body, `class="section"`)
	assert.Contains(t, body, ">Details<")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result?token="+token, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	_, mux := newTestServer(t, liveRunner())
	rec, env := get(t, mux, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "healthy")
}

func TestRunLogAppends(t *testing.T) {
	dir := t.TempDir()
	runLog, err := OpenRunLog(dir)
	require.NoError(t, err)

	store := handoff.NewStore(time.Minute, zap.NewNop())
	defer store.Close()
	s := New(liveRunner(), store, runLog, 0, zap.NewNop())
	mux := s.Routes()

	uploadCSV(t, mux, sampleCSV)
	postJSON(t, mux, "/api/analyze", `{"analysis":"descriptive","columns":["A"]}`)
	postJSON(t, mux, "/api/analyze", `{"analysis":"descriptive","columns":["Z"]}`)

	raw, err := os.ReadFile(filepath.Join(dir, "analysis_log.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var first, second RunEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "ok", first.Outcome)
	assert.Equal(t, "error", second.Outcome)
	assert.Equal(t, string(faults.CodeUnknownColumn), second.Code)
}
