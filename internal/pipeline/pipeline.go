// Package pipeline is the batch orchestrator: it enumerates work units
// (symbols x input directories x timeframes x output formats), drives the
// normalizer, aggregator and store for each unit, and isolates failures to
// the unit that produced them so one bad symbol never aborts the run.
package pipeline

import (
	"log/slog"

	"github.com/quantlab/tickhist/internal/aggregate"
	"github.com/quantlab/tickhist/internal/config"
	"github.com/quantlab/tickhist/internal/normalize"
)

// Pipeline wires the processing components together for batch runs.
type Pipeline struct {
	cfg    config.Config
	logger *slog.Logger
	norm   *normalize.Normalizer
	aggr   *aggregate.Aggregator
}

// New builds a Pipeline from the immutable configuration.
func New(cfg config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		norm:   normalize.New(cfg.Precision, logger.With("component", "normalize")),
		aggr:   aggregate.New(cfg.Precision),
	}
}

// Summary reports what happened to the units of a run. Per-unit failures do
// not abort the run; callers inspect Failed to decide the exit status
// distinct from configuration errors.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
}

// unitFailed records a unit failure and advances the run.
func (p *Pipeline) unitFailed(sum *Summary, unit string, err error) {
	sum.Failed++
	p.logger.Error("unit failed", "unit", unit, "error", err)
}

// unitSkipped records a unit with no usable input.
func (p *Pipeline) unitSkipped(sum *Summary, unit, reason string) {
	sum.Skipped++
	p.logger.Warn("unit skipped", "unit", unit, "reason", reason)
}
