package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"saistats/internal/dataset"
	"saistats/internal/engine"
	"saistats/internal/faults"
	"saistats/internal/handoff"
	"saistats/internal/table"
)

const (
	// DefaultMaxUpload bounds a spreadsheet upload.
	DefaultMaxUpload = 32 << 20
	// MaxRows bounds the accepted spreadsheet size.
	MaxRows = 100000
)

// AnalysisRunner executes one analysis. The process-spawning invoker is
// the production implementation.
type AnalysisRunner interface {
	Invoke(ctx context.Context, analysis engine.Analysis, ds *dataset.Dataset) (*table.Table, error)
}

// Server holds the handlers and their shared state: the current
// workbook, the analysis runner and the result store.
type Server struct {
	mu       sync.RWMutex
	workbook *dataset.Workbook
	fileName string
	uploaded time.Time

	runner   AnalysisRunner
	store    *handoff.Store
	runLog   *RunLog
	maxBytes int64
	log      *zap.Logger
}

// New wires a server. runLog may be nil to disable the run log.
func New(runner AnalysisRunner, store *handoff.Store, runLog *RunLog, maxBytes int64, log *zap.Logger) *Server {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUpload
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{runner: runner, store: store, runLog: runLog, maxBytes: maxBytes, log: log}
}

// Routes builds the full route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/sheets", s.handleSheets)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/result/{token}", s.handleResult)
	mux.HandleFunc("GET /result", s.handleViewer)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		s.respondError(w, faults.Validationf(faults.CodeBadParameter, "upload too large or malformed: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, faults.Validationf(faults.CodeBadParameter, "missing file field"))
		return
	}
	defer file.Close()

	wb, err := dataset.OpenWorkbook(file, header.Filename)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if wb.RowCount() > MaxRows {
		s.respondError(w, faults.Validationf(faults.CodeBadParameter,
			"too many rows: %d > %d", wb.RowCount(), MaxRows))
		return
	}

	s.mu.Lock()
	s.workbook = wb
	s.fileName = header.Filename
	s.uploaded = time.Now()
	s.mu.Unlock()

	s.log.Info("spreadsheet uploaded",
		zap.String("file", header.Filename),
		zap.Int64("bytes", header.Size),
		zap.Int("rows", wb.RowCount()))

	s.respondData(w, s.describe(wb, header.Filename))
}

func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	wb, name := s.workbook, s.fileName
	s.mu.RUnlock()
	if wb == nil {
		s.respondError(w, faults.Validationf(faults.CodeBadParameter, "no spreadsheet uploaded"))
		return
	}
	s.respondData(w, s.describe(wb, name))
}

type workbookInfo struct {
	FileName       string   `json:"file_name"`
	Sheets         []string `json:"sheets"`
	Headers        []string `json:"headers"`
	NumericColumns []string `json:"numeric_columns"`
	RowCount       int      `json:"row_count"`
}

func (s *Server) describe(wb *dataset.Workbook, name string) workbookInfo {
	return workbookInfo{
		FileName:       name,
		Sheets:         wb.Sheets(),
		Headers:        wb.Headers(),
		NumericColumns: wb.NumericColumns(),
		RowCount:       wb.RowCount(),
	}
}

type analyzeRequest struct {
	Analysis string          `json:"analysis"`
	Columns  []string        `json:"columns"`
	Options  json.RawMessage `json:"options"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, faults.Validationf(faults.CodeBadParameter, "bad request body: %v", err))
		return
	}
	kind, err := engine.ParseKind(req.Analysis)
	if err != nil {
		s.respondError(w, err)
		return
	}
	analysis, err := decodeAnalysis(kind, req.Options)
	if err != nil {
		s.respondError(w, err)
		return
	}

	// Design runs on parameters alone; everything else needs data.
	ds := dataset.New()
	if kind != engine.KindDesign {
		s.mu.RLock()
		wb := s.workbook
		s.mu.RUnlock()
		if wb == nil {
			s.respondError(w, faults.Validationf(faults.CodeBadParameter, "no spreadsheet uploaded"))
			return
		}
		ds, err = dataset.Build(req.Columns, wb)
		if err != nil {
			s.respondError(w, err)
			return
		}
	}

	start := time.Now()
	result, err := s.runner.Invoke(r.Context(), analysis, ds)
	s.appendRunLog(kind, req.Columns, time.Since(start), err)
	if err != nil {
		s.respondError(w, err)
		return
	}

	token, err := s.store.Issue(result)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondData(w, map[string]string{"token": token})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	result, err := s.store.Consume(token)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondData(w, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}})
}

func (s *Server) appendRunLog(kind string, columns []string, elapsed time.Duration, err error) {
	if s.runLog == nil {
		return
	}
	entry := RunEntry{
		Time:     time.Now().UTC(),
		Analysis: kind,
		Columns:  columns,
		Millis:   elapsed.Milliseconds(),
		Outcome:  "ok",
	}
	if err != nil {
		entry.Outcome = "error"
		if f, ok := faults.As(err); ok {
			entry.Code = string(f.Code)
		}
	}
	if appendErr := s.runLog.Append(entry); appendErr != nil {
		s.log.Warn("run log append failed", zap.Error(appendErr))
	}
}

// decodeAnalysis binds raw options JSON to the typed options of kind.
func decodeAnalysis(kind string, raw json.RawMessage) (engine.Analysis, error) {
	bind := func(v any) error {
		if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return faults.Validationf(faults.CodeBadParameter, "bad options: %v", err)
		}
		return nil
	}
	switch kind {
	case engine.KindDescriptive:
		var a engine.DescriptiveAnalysis
		return a, bind(&a.DescriptiveOptions)
	case engine.KindCorrelation:
		var a engine.CorrelationAnalysis
		return a, bind(&a.CorrelationOptions)
	case engine.KindRegression:
		var a engine.RegressionAnalysis
		return a, bind(&a.RegressionOptions)
	case engine.KindReliability:
		return engine.ReliabilityAnalysis{}, nil
	case engine.KindDesign:
		var a engine.DesignAnalysis
		return a, bind(&a.DesignOptions)
	}
	return nil, faults.Validationf(faults.CodeUnknownAnalysis, "unknown analysis %q", kind)
}
