package pipeline

import (
	"sync"

	"go.uber.org/zap"

	"github.com/David-Botos/orders-etl/pkg/model"
)

// WarningCollector records non-fatal conditions raised during a run
type WarningCollector struct {
	logger   *zap.Logger
	mu       sync.Mutex
	warnings []model.Warning
	counts   map[model.WarningKind]int
}

// NewWarningCollector creates a new collector
func NewWarningCollector(logger *zap.Logger) *WarningCollector {
	return &WarningCollector{
		logger: logger,
		counts: make(map[model.WarningKind]int),
	}
}

// Record logs and stores warnings in the order they are raised
func (wc *WarningCollector) Record(warnings ...model.Warning) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	for _, w := range warnings {
		wc.warnings = append(wc.warnings, w)
		wc.counts[w.Kind]++

		if wc.logger != nil {
			wc.logger.Warn("Pipeline warning",
				zap.String("kind", string(w.Kind)),
				zap.String("stage", w.Stage),
				zap.String("table", w.Table),
				zap.String("column", w.Column),
				zap.String("message", w.Message))
		}
	}
}

// Warnings returns a copy of the recorded warnings
func (wc *WarningCollector) Warnings() []model.Warning {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	out := make([]model.Warning, len(wc.warnings))
	copy(out, wc.warnings)
	return out
}

// Summary returns warning counts by kind
func (wc *WarningCollector) Summary() map[model.WarningKind]int {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	summary := make(map[model.WarningKind]int, len(wc.counts))
	for kind, count := range wc.counts {
		summary[kind] = count
	}
	return summary
}
