// Package server exposes the analysis pipeline over HTTP: spreadsheet
// upload, analysis execution and single-use result retrieval, plus a
// minimal HTML viewer for fetched results.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"saistats/internal/faults"
)

// APIResponse is the JSON envelope every API endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondData(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned; net/http has no name for it.
const statusClientClosedRequest = 499

// respondError maps a fault to its HTTP status. Contract violations hide
// their detail behind a generic message; everything else surfaces
// verbatim so the caller can fix the input.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		// The caller went away mid-run; nobody reads this response.
		s.log.Debug("request canceled")
		s.writeJSON(w, statusClientClosedRequest, APIResponse{Success: false, Error: "request canceled"})
		return
	}
	f, ok := faults.As(err)
	if !ok {
		s.log.Error("unclassified failure", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{Success: false, Error: "internal error"})
		return
	}
	status := statusFor(f)
	resp := APIResponse{Success: false, Error: f.Message, Code: string(f.Code)}
	if f.Class == faults.ContractViolation {
		s.log.Error("contract violation", zap.String("code", string(f.Code)), zap.String("message", f.Message))
		resp.Error = "internal error"
	}
	s.writeJSON(w, status, resp)
}

func statusFor(f *faults.Fault) int {
	switch f.Class {
	case faults.Validation:
		return http.StatusBadRequest
	case faults.Timeout:
		return http.StatusGatewayTimeout
	case faults.EngineFailure:
		return http.StatusBadGateway
	case faults.HandoffFailure:
		if f.Code == faults.CodeTokenExpired {
			return http.StatusGone
		}
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
