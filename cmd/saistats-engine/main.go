// Command saistats-engine is the analysis worker. The server spawns it
// per run:
//
//	saistats-engine <analysis> <input> <output> <options>
//
// input holds the dataset payload, options the analysis options JSON;
// the result table is written to output. On failure the process exits
// nonzero with a single-line JSON diagnostic on stderr.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"saistats/internal/dataset"
	"saistats/internal/engine"
	"saistats/internal/faults"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", faults.EncodeWire(err))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 4 {
		return faults.Validationf(faults.CodeBadParameter,
			"usage: saistats-engine <analysis> <input> <output> <options>")
	}
	kind, err := engine.ParseKind(args[0])
	if err != nil {
		return err
	}

	inJSON, err := os.ReadFile(args[1])
	if err != nil {
		return faults.Validationf(faults.CodeBadParameter, "read input: %v", err)
	}
	ds := dataset.New()
	if err := json.Unmarshal(inJSON, ds); err != nil {
		return faults.Validationf(faults.CodeBadParameter, "bad dataset payload: %v", err)
	}
	optsJSON, err := os.ReadFile(args[3])
	if err != nil {
		return faults.Validationf(faults.CodeBadParameter, "read options: %v", err)
	}

	result, err := engine.Execute(kind, ds, optsJSON)
	if err != nil {
		return err
	}
	outJSON, err := json.Marshal(result)
	if err != nil {
		return faults.Contractf(faults.CodeOutputUnreadable, "encode result: %v", err)
	}
	if err := os.WriteFile(args[2], outJSON, 0o600); err != nil {
		return faults.Contractf(faults.CodeOutputUnreadable, "write output: %v", err)
	}
	return nil
}
