// Package faults defines the error taxonomy shared by the analysis
// pipeline: user-caused validation failures, engine timeouts, engine
// failures, internal contract violations and handoff failures. Codes are
// drawn from a closed registry so the boundary between user-fixable and
// internal errors is mechanical.
package faults

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Class partitions faults by who can fix them and how they surface.
type Class int

const (
	// Validation is a user-caused input problem, surfaced verbatim.
	Validation Class = iota
	// Timeout means the engine exceeded its allotted duration.
	Timeout
	// EngineFailure means the external process exited with diagnostics.
	EngineFailure
	// ContractViolation is an internal failure (bad engine output,
	// missing engine binary). Always logged.
	ContractViolation
	// HandoffFailure covers unknown, expired or already-consumed tokens.
	HandoffFailure
)

func (c Class) String() string {
	switch c {
	case Validation:
		return "validation"
	case Timeout:
		return "timeout"
	case EngineFailure:
		return "engine"
	case ContractViolation:
		return "contract"
	case HandoffFailure:
		return "handoff"
	}
	return "unknown"
}

// Code is a stable fault code.
type Code string

const (
	// CodeEmptySelection indicates no columns were selected.
	CodeEmptySelection Code = "empty-selection"
	// CodeUnknownColumn indicates a selected column does not exist.
	CodeUnknownColumn Code = "unknown-column"
	// CodeTooFewColumns indicates an analysis needs more columns.
	CodeTooFewColumns Code = "too-few-columns"
	// CodeMissingNotAllowed indicates missing values under all-present.
	CodeMissingNotAllowed Code = "missing-not-allowed"
	// CodeBadParameter indicates an out-of-range or malformed option.
	CodeBadParameter Code = "bad-parameter"
	// CodeUnknownAnalysis indicates the engine received an analysis name
	// outside its dispatch set.
	CodeUnknownAnalysis Code = "unknown-analysis"
	// CodeEngineTimeout indicates the engine process was killed at the
	// deadline.
	CodeEngineTimeout Code = "engine-timeout"
	// CodeEngineExit indicates the engine exited nonzero.
	CodeEngineExit Code = "engine-exit"
	// CodeEngineUnavailable indicates the engine binary could not be
	// started.
	CodeEngineUnavailable Code = "engine-unavailable"
	// CodeRowLengthMismatch indicates a row whose length differs from the
	// header count.
	CodeRowLengthMismatch Code = "row-length-mismatch"
	// CodeOutputUnreadable indicates the engine output payload could not
	// be parsed.
	CodeOutputUnreadable Code = "engine-output-unreadable"
	// CodeTokenNotFound indicates an unknown or already-consumed token.
	CodeTokenNotFound Code = "token-not-found"
	// CodeTokenExpired indicates a token past its ttl.
	CodeTokenExpired Code = "token-expired"
)

// Fault is a classified error with a stable code.
type Fault struct {
	Class   Class
	Code    Code
	Message string
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return fmt.Sprintf("[%s]", f.Code)
	}
	return fmt.Sprintf("[%s] %s", f.Code, f.Message)
}

// New builds a fault with a formatted message.
func New(class Class, code Code, format string, args ...any) *Fault {
	return &Fault{Class: class, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation fault.
func Validationf(code Code, format string, args ...any) *Fault {
	return New(Validation, code, format, args...)
}

// Contractf builds a contract-violation fault.
func Contractf(code Code, format string, args ...any) *Fault {
	return New(ContractViolation, code, format, args...)
}

// As unwraps err into a *Fault when possible.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsClass reports whether err is a fault of the given class.
func IsClass(err error, class Class) bool {
	f, ok := As(err)
	return ok && f.Class == class
}

// Registry maps stable codes to their class. It is constructed once at
// startup and passed into the pipeline; decoding engine diagnostics goes
// through it so unknown codes degrade to an opaque engine failure instead
// of being string-matched downstream.
type Registry struct {
	classes map[Code]Class
}

// NewRegistry returns the closed code registry.
func NewRegistry() *Registry {
	return &Registry{classes: map[Code]Class{
		CodeEmptySelection:    Validation,
		CodeUnknownColumn:     Validation,
		CodeTooFewColumns:     Validation,
		CodeMissingNotAllowed: Validation,
		CodeBadParameter:      Validation,
		CodeUnknownAnalysis:   Validation,
		CodeEngineTimeout:     Timeout,
		CodeEngineExit:        EngineFailure,
		CodeEngineUnavailable: ContractViolation,
		CodeRowLengthMismatch: ContractViolation,
		CodeOutputUnreadable:  ContractViolation,
		CodeTokenNotFound:     HandoffFailure,
		CodeTokenExpired:      HandoffFailure,
	}}
}

// Known reports whether code is in the registry.
func (r *Registry) Known(code Code) bool {
	_, ok := r.classes[code]
	return ok
}

// ClassOf returns the class registered for code.
func (r *Registry) ClassOf(code Code) (Class, bool) {
	c, ok := r.classes[code]
	return c, ok
}

// wireError is the shape the engine writes to stderr on failure.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeWire renders a fault as the single-line JSON diagnostic the
// engine process emits on stderr.
func EncodeWire(err error) []byte {
	we := wireError{Code: string(CodeEngineExit), Message: err.Error()}
	if f, ok := As(err); ok {
		we = wireError{Code: string(f.Code), Message: f.Message}
	}
	b, marshalErr := json.Marshal(we)
	if marshalErr != nil {
		return []byte(`{"code":"engine-exit","message":"unencodable engine error"}`)
	}
	return b
}

// DecodeWire parses engine stderr diagnostics into a typed fault. The
// last JSON object line wins; anything unparseable, and any code outside
// the registry, becomes an opaque engine failure carrying the raw text.
func (r *Registry) DecodeWire(stderr []byte) *Fault {
	text := strings.TrimSpace(string(stderr))
	for _, line := range reverseLines(text) {
		var we wireError
		if err := json.Unmarshal([]byte(line), &we); err != nil || we.Code == "" {
			continue
		}
		code := Code(we.Code)
		if class, ok := r.classes[code]; ok {
			return &Fault{Class: class, Code: code, Message: we.Message}
		}
		return &Fault{Class: EngineFailure, Code: CodeEngineExit, Message: we.Message}
	}
	return &Fault{Class: EngineFailure, Code: CodeEngineExit, Message: text}
}

func reverseLines(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
