package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"saistats/internal/dataset"
	"saistats/internal/faults"
	"saistats/internal/table"
)

// ProcessResult is what a finished worker process left behind.
type ProcessResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ProcessRunner runs the worker binary. The exec implementation is the
// only one used outside tests.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args []string, env []string) (*ProcessResult, error)
}

// ExecRunner runs the worker via exec.CommandContext, so cancelling the
// context kills the process.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, env []string) (*ProcessResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &ProcessResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, err
	}
	return res, nil
}

// DefaultTimeout bounds a single analysis run.
const DefaultTimeout = 30 * time.Second

// Invoker spawns the worker process for each analysis: dataset and
// options go in through temp files, the result table comes back the same
// way, and diagnostics ride stderr.
type Invoker struct {
	EnginePath string
	Timeout    time.Duration
	Runner     ProcessRunner
	Registry   *faults.Registry
	Log        *zap.Logger
}

// NewInvoker wires an invoker around the worker binary at path.
func NewInvoker(path string, timeout time.Duration, reg *faults.Registry, log *zap.Logger) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{EnginePath: path, Timeout: timeout, Runner: ExecRunner{}, Registry: reg, Log: log}
}

// Invoke runs one analysis to completion and returns the validated
// result table.
func (inv *Invoker) Invoke(ctx context.Context, analysis Analysis, ds *dataset.Dataset) (*table.Table, error) {
	dir, err := os.MkdirTemp("", "saistats-run-*")
	if err != nil {
		return nil, faults.Contractf(faults.CodeEngineUnavailable, "temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input.json")
	outPath := filepath.Join(dir, "output.json")
	optsPath := filepath.Join(dir, "options.json")

	dsJSON, err := json.Marshal(ds)
	if err != nil {
		return nil, faults.Contractf(faults.CodeEngineUnavailable, "encode dataset: %v", err)
	}
	optsJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, faults.Contractf(faults.CodeEngineUnavailable, "encode options: %v", err)
	}
	if err := os.WriteFile(inPath, dsJSON, 0o600); err != nil {
		return nil, faults.Contractf(faults.CodeEngineUnavailable, "write input: %v", err)
	}
	if err := os.WriteFile(optsPath, optsJSON, 0o600); err != nil {
		return nil, faults.Contractf(faults.CodeEngineUnavailable, "write options: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	start := time.Now()
	args := []string{analysis.Kind(), inPath, outPath, optsPath}
	// Pin the locale so the worker's numeric formatting is stable.
	res, runErr := inv.Runner.Run(runCtx, inv.EnginePath, args, []string{"LC_ALL=C"})
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		inv.Log.Warn("engine timed out",
			zap.String("analysis", analysis.Kind()),
			zap.Duration("timeout", inv.Timeout))
		return nil, faults.New(faults.Timeout, faults.CodeEngineTimeout,
			"analysis %q exceeded %s", analysis.Kind(), inv.Timeout)
	}
	if runErr != nil {
		inv.Log.Error("engine could not be started",
			zap.String("path", inv.EnginePath), zap.Error(runErr))
		return nil, faults.Contractf(faults.CodeEngineUnavailable,
			"engine %s: %v", inv.EnginePath, runErr)
	}
	if res.ExitCode != 0 {
		f := inv.Registry.DecodeWire(res.Stderr)
		if f.Class == faults.ContractViolation || f.Class == faults.EngineFailure {
			inv.Log.Error("engine failed",
				zap.String("analysis", analysis.Kind()),
				zap.Int("exit", res.ExitCode),
				zap.String("code", string(f.Code)),
				zap.String("message", f.Message))
		}
		return nil, f
	}

	outJSON, err := os.ReadFile(outPath)
	if err != nil {
		return nil, faults.Contractf(faults.CodeOutputUnreadable, "read output: %v", err)
	}
	var result table.Table
	if err := json.Unmarshal(outJSON, &result); err != nil {
		return nil, faults.Contractf(faults.CodeOutputUnreadable, "decode output: %v", err)
	}
	if err := result.Validate(); err != nil {
		inv.Log.Error("engine produced a malformed table",
			zap.String("analysis", analysis.Kind()), zap.Error(err))
		return nil, err
	}

	inv.Log.Info("analysis complete",
		zap.String("analysis", analysis.Kind()),
		zap.Int("rows", len(result.Rows)),
		zap.Duration("elapsed", elapsed))
	return &result, nil
}
