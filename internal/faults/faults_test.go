package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultFormatting(t *testing.T) {
	f := Validationf(CodeUnknownColumn, "column %q not found", "Age")
	assert.Equal(t, `[unknown-column] column "Age" not found`, f.Error())
	assert.Equal(t, "[engine-timeout]", (&Fault{Code: CodeEngineTimeout}).Error())
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	inner := Contractf(CodeRowLengthMismatch, "row 3 has 2 cells, want 5")
	wrapped := fmt.Errorf("invoke: %w", inner)

	f, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeRowLengthMismatch, f.Code)
	assert.True(t, IsClass(wrapped, ContractViolation))
	assert.False(t, IsClass(wrapped, Validation))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestRegistryCoversEveryCode(t *testing.T) {
	r := NewRegistry()
	codes := []Code{
		CodeEmptySelection, CodeUnknownColumn, CodeTooFewColumns,
		CodeMissingNotAllowed, CodeBadParameter, CodeUnknownAnalysis,
		CodeEngineTimeout, CodeEngineExit, CodeEngineUnavailable,
		CodeRowLengthMismatch, CodeOutputUnreadable,
		CodeTokenNotFound, CodeTokenExpired,
	}
	for _, code := range codes {
		assert.True(t, r.Known(code), string(code))
	}
	assert.False(t, r.Known("made-up"))

	class, ok := r.ClassOf(CodeEngineTimeout)
	require.True(t, ok)
	assert.Equal(t, Timeout, class)
}

func TestWireRoundTrip(t *testing.T) {
	r := NewRegistry()
	line := EncodeWire(Validationf(CodeTooFewColumns, "got 1"))

	f := r.DecodeWire(line)
	assert.Equal(t, CodeTooFewColumns, f.Code)
	assert.Equal(t, Validation, f.Class)
	assert.Equal(t, "got 1", f.Message)
}

func TestDecodeWireLastLineWins(t *testing.T) {
	r := NewRegistry()
	stderr := []byte("warning: locale fallback\n" +
		`{"code":"bad-parameter","message":"first"}` + "\n" +
		`{"code":"unknown-column","message":"second"}` + "\n")
	f := r.DecodeWire(stderr)
	assert.Equal(t, CodeUnknownColumn, f.Code)
	assert.Equal(t, "second", f.Message)
}

func TestDecodeWireUnknownAndGarbage(t *testing.T) {
	r := NewRegistry()

	f := r.DecodeWire([]byte(`{"code":"out-of-memory","message":"boom"}`))
	assert.Equal(t, CodeEngineExit, f.Code)
	assert.Equal(t, EngineFailure, f.Class)
	assert.Equal(t, "boom", f.Message)

	f = r.DecodeWire([]byte("panic: runtime error\n"))
	assert.Equal(t, CodeEngineExit, f.Code)
	assert.Contains(t, f.Message, "panic")

	f = r.DecodeWire(nil)
	assert.Equal(t, CodeEngineExit, f.Code)
}

func TestEncodeWirePlainError(t *testing.T) {
	line := EncodeWire(errors.New("disk full"))
	f := NewRegistry().DecodeWire(line)
	assert.Equal(t, CodeEngineExit, f.Code)
	assert.Equal(t, "disk full", f.Message)
}
