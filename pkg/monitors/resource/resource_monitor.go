// Package resource reports the process's memory use and the size of the
// deduplication set, which grows without bound unless a cap is configured.
package resource

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lucid-vigil/flowguard/pkg/monitors/base"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Name is the monitor name used in the monitors configuration.
const Name = "resource_monitor"

// DefaultWarnEntries is the dedup-set size above which each run logs a warning.
const DefaultWarnEntries = 1_000_000

// SizeFunc reports the number of remembered connection identifiers.
type SizeFunc func() int

// Monitor implements scheduler.Monitor.
type Monitor struct {
	*base.BaseMonitor
	dedupSize   SizeFunc
	warnEntries int
	rss         prometheus.Gauge
	entries     prometheus.Gauge
	memInfo     func(ctx context.Context) (*process.MemoryInfoStat, error)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithGauges exports RSS and dedup-set size.
func WithGauges(rss, entries prometheus.Gauge) Option {
	return func(m *Monitor) {
		m.rss = rss
		m.entries = entries
	}
}

// WithWarnEntries overrides DefaultWarnEntries.
func WithWarnEntries(n int) Option {
	return func(m *Monitor) { m.warnEntries = n }
}

// NewMonitor creates a resource monitor for the current process.
func NewMonitor(logger zerolog.Logger, dedupSize SizeFunc, opts ...Option) (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("resource monitor: %w", err)
	}
	m := &Monitor{
		BaseMonitor: base.NewBaseMonitor(Name, logger),
		dedupSize:   dedupSize,
		warnEntries: DefaultWarnEntries,
		memInfo:     proc.MemoryInfoWithContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run samples memory and dedup size once.
func (m *Monitor) Run(ctx context.Context) {
	entries := m.dedupSize()
	m.UpdateMetrics("dedup_entries", entries)
	if m.entries != nil {
		m.entries.Set(float64(entries))
	}

	logger := m.Logger()
	event := logger.Info().Int("dedup_entries", entries)

	mem, err := m.memInfo(ctx)
	m.RecordRun(time.Now(), err)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read process memory info.")
	} else {
		m.UpdateMetrics("rss_bytes", mem.RSS)
		if m.rss != nil {
			m.rss.Set(float64(mem.RSS))
		}
		event = event.Uint64("rss_bytes", mem.RSS)
	}
	event.Msg("Resource usage sampled.")

	if m.warnEntries > 0 && entries > m.warnEntries {
		m.LogEvent(zerolog.WarnLevel, fmt.Sprintf("Deduplication set holds %d identifiers; consider setting dedup.max_entries or dedup.ttl.", entries))
	}
}
