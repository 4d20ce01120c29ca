package base

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BaseMonitor provides the shared logging, status and metric bookkeeping of
// periodic monitors.
type BaseMonitor struct {
	name      string
	lastRun   time.Time
	lastError error
	metrics   map[string]interface{}
	logger    zerolog.Logger
	mu        sync.Mutex // protects lastRun, lastError and metrics
}

// NewBaseMonitor creates and initializes a new BaseMonitor with a given name and logger.
func NewBaseMonitor(name string, logger zerolog.Logger) *BaseMonitor {
	return &BaseMonitor{
		name:    name,
		logger:  logger.With().Str("monitor", name).Logger(),
		metrics: make(map[string]interface{}),
	}
}

// Name returns the monitor's name.
func (b *BaseMonitor) Name() string {
	return b.name
}

// Logger returns the monitor's logger.
func (b *BaseMonitor) Logger() zerolog.Logger {
	return b.logger
}

// GetLastError returns the error of the last run, if any.
func (b *BaseMonitor) GetLastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

// GetLastExecutionTime returns the last time the monitor was executed.
func (b *BaseMonitor) GetLastExecutionTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRun
}

// RecordRun stores the time and outcome of a run.
func (b *BaseMonitor) RecordRun(at time.Time, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastRun = at
	b.lastError = err
}

// GetMetrics returns a copy of the monitor's collected metrics.
func (b *BaseMonitor) GetMetrics() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	dest := make(map[string]interface{}, len(b.metrics))
	for k, v := range b.metrics {
		dest[k] = v
	}
	return dest
}

// LogEvent is a helper to log events with the monitor's context.
func (b *BaseMonitor) LogEvent(level zerolog.Level, message string) {
	b.logger.WithLevel(level).Msg(message)
}

// UpdateMetrics is a helper to update a metric value.
func (b *BaseMonitor) UpdateMetrics(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics[key] = value
}
