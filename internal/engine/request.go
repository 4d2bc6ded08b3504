// Package engine runs analyses in an external worker process: the
// invoker hands the dataset and options over through temp files and the
// worker writes a tabular result back. Keeping the execution out of
// process isolates the server from numeric crashes and lets a run be
// killed at its deadline.
package engine

import (
	"encoding/json"

	"saistats/internal/dataset"
	"saistats/internal/faults"
	"saistats/internal/stats"
	"saistats/internal/table"
)

// Analysis kinds understood by the worker.
const (
	KindDescriptive = "descriptive"
	KindCorrelation = "correlation"
	KindRegression  = "regression"
	KindReliability = "reliability"
	KindDesign      = "design"
)

// ParseKind validates an analysis name from the outside world.
func ParseKind(name string) (string, error) {
	switch name {
	case KindDescriptive, KindCorrelation, KindRegression, KindReliability, KindDesign:
		return name, nil
	}
	return "", faults.Validationf(faults.CodeUnknownAnalysis, "unknown analysis %q", name)
}

// Analysis is a request for one analysis kind with its typed options.
type Analysis interface {
	Kind() string
}

type DescriptiveAnalysis struct {
	stats.DescriptiveOptions
}

func (DescriptiveAnalysis) Kind() string { return KindDescriptive }

type CorrelationAnalysis struct {
	stats.CorrelationOptions
}

func (CorrelationAnalysis) Kind() string { return KindCorrelation }

type RegressionAnalysis struct {
	stats.RegressionOptions
}

func (RegressionAnalysis) Kind() string { return KindRegression }

// ReliabilityAnalysis carries no options; the item set is the dataset.
type ReliabilityAnalysis struct{}

func (ReliabilityAnalysis) Kind() string { return KindReliability }

type DesignAnalysis struct {
	stats.DesignOptions
}

func (DesignAnalysis) Kind() string { return KindDesign }

// Execute dispatches one analysis against a restored dataset. This is
// the worker side of the protocol; the invoker reaches it through the
// spawned process.
func Execute(kind string, ds *dataset.Dataset, optionsJSON []byte) (*table.Table, error) {
	decode := func(v any) error {
		if len(optionsJSON) == 0 {
			return nil
		}
		if err := json.Unmarshal(optionsJSON, v); err != nil {
			return faults.Validationf(faults.CodeBadParameter, "bad options payload: %v", err)
		}
		return nil
	}
	switch kind {
	case KindDescriptive:
		var opts stats.DescriptiveOptions
		if err := decode(&opts); err != nil {
			return nil, err
		}
		return stats.Descriptive(ds, opts)
	case KindCorrelation:
		var opts stats.CorrelationOptions
		if err := decode(&opts); err != nil {
			return nil, err
		}
		return stats.Correlation(ds, opts)
	case KindRegression:
		var opts stats.RegressionOptions
		if err := decode(&opts); err != nil {
			return nil, err
		}
		return stats.Regression(ds, opts)
	case KindReliability:
		return stats.Reliability(ds)
	case KindDesign:
		var opts stats.DesignOptions
		if err := decode(&opts); err != nil {
			return nil, err
		}
		return stats.Design(opts)
	}
	return nil, faults.Validationf(faults.CodeUnknownAnalysis, "unknown analysis %q", kind)
}
