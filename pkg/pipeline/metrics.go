package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stage names, in execution order
const (
	StageConfig   = "config"
	StageLoad     = "load"
	StageClean    = "clean"
	StageQuality  = "quality"
	StageJoin     = "join"
	StageFeatures = "features"
	StageWrite    = "write"
	StageVerify   = "verify"
	StageMetadata = "metadata"
)

// StageMetrics tracks timing and volume for one stage
type StageMetrics struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Rows      int
	Failed    bool
}

// Duration returns the stage duration
func (sm *StageMetrics) Duration() time.Duration {
	if sm.EndTime.IsZero() {
		return time.Since(sm.StartTime)
	}
	return sm.EndTime.Sub(sm.StartTime)
}

// RunMetrics tracks metrics for one pipeline run
type RunMetrics struct {
	mu        sync.Mutex
	logger    *zap.Logger
	StartTime time.Time
	EndTime   time.Time
	stages    map[string]*StageMetrics
	order     []string
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:    logger,
		StartTime: time.Now(),
		stages:    make(map[string]*StageMetrics),
	}
}

// StartStage begins tracking a stage
func (rm *RunMetrics) StartStage(name string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.stages[name]; !ok {
		rm.order = append(rm.order, name)
	}
	rm.stages[name] = &StageMetrics{Name: name, StartTime: time.Now()}

	if rm.logger != nil {
		rm.logger.Debug("Started stage", zap.String("stage", name))
	}
}

// EndStage completes tracking for a stage
func (rm *RunMetrics) EndStage(name string, rows int, err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	sm, ok := rm.stages[name]
	if !ok {
		return
	}
	sm.EndTime = time.Now()
	sm.Rows = rows
	sm.Failed = err != nil

	if rm.logger == nil {
		return
	}
	if err != nil {
		rm.logger.Error("Stage failed",
			zap.String("stage", name),
			zap.Duration("duration", sm.Duration()),
			zap.Error(err))
		return
	}
	rm.logger.Info("Completed stage",
		zap.String("stage", name),
		zap.Duration("duration", sm.Duration()),
		zap.Int("rows", rows))
}

// Finish marks the end of the run
func (rm *RunMetrics) Finish() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.EndTime = time.Now()
}

// Duration returns the run duration so far
func (rm *RunMetrics) Duration() time.Duration {
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

// StageDurationsMS returns completed stage durations in milliseconds
func (rm *RunMetrics) StageDurationsMS() map[string]int64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make(map[string]int64, len(rm.stages))
	for name, sm := range rm.stages {
		if sm.EndTime.IsZero() {
			continue
		}
		out[name] = sm.Duration().Milliseconds()
	}
	return out
}

// Stages returns the tracked stages in the order they were started
func (rm *RunMetrics) Stages() []StageMetrics {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make([]StageMetrics, 0, len(rm.order))
	for _, name := range rm.order {
		out = append(out, *rm.stages[name])
	}
	return out
}

// formatDuration rounds to milliseconds for log output
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// ToJSON serializes the run duration and per-stage metrics in start order
func (rm *RunMetrics) ToJSON() ([]byte, error) {
	stages := rm.Stages()

	type stageJSON struct {
		Name     string `json:"name"`
		Duration string `json:"duration"`
		Rows     int    `json:"rows"`
		Failed   bool   `json:"failed"`
	}
	out := make([]stageJSON, 0, len(stages))
	for _, s := range stages {
		out = append(out, stageJSON{
			Name:     s.Name,
			Duration: formatDuration(s.Duration()),
			Rows:     s.Rows,
			Failed:   s.Failed,
		})
	}

	return json.Marshal(struct {
		Duration string      `json:"duration"`
		Stages   []stageJSON `json:"stages"`
	}{
		Duration: formatDuration(rm.Duration()),
		Stages:   out,
	})
}
