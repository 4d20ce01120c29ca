// Package alert records malicious verdicts.
package alert

import (
	"context"
	"fmt"
	"os"
	"sync"

	perrors "github.com/lucid-vigil/flowguard/pkg/errors"
	"github.com/lucid-vigil/flowguard/pkg/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// NotificationTitle is the title of operator notifications.
const NotificationTitle = "NIDS Alert"

// Notifier delivers best-effort operator notifications.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification)
}

// Sink appends alerts to the alert log, echoes them to the console and
// notifies the operator.
type Sink struct {
	path     string
	mu       sync.Mutex
	f        *os.File
	logger   zerolog.Logger
	notifier Notifier
	errs     *perrors.Handler
	written  prometheus.Counter
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithNotifier sets the operator notifier.
func WithNotifier(n Notifier) SinkOption {
	return func(s *Sink) { s.notifier = n }
}

// WithErrorHandler reports alert-log write failures.
func WithErrorHandler(h *perrors.Handler) SinkOption {
	return func(s *Sink) { s.errs = h }
}

// WithWrittenCounter counts lines appended to the alert log.
func WithWrittenCounter(c prometheus.Counter) SinkOption {
	return func(s *Sink) { s.written = c }
}

// NewSink opens (or creates) the alert log at path for appending.
func NewSink(path string, logger zerolog.Logger, opts ...SinkOption) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("alert log: open %s: %w", path, err)
	}
	s := &Sink{
		path:   path,
		f:      f,
		logger: logger.With().Str("component", "alert_sink").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Alert records a malicious verdict. The durable write, console line and
// notification are attempted independently; failures are reported to the
// error handler and never returned.
func (s *Sink) Alert(ctx context.Context, e Event) {
	line := e.Line()

	if err := s.append(line); err != nil {
		s.reportWriteError(e.UID, err)
	} else if s.written != nil {
		s.written.Inc()
	}

	s.logger.Warn().
		Str("alert_id", e.ID).
		Str("uid", e.UID).
		Str("src", e.Src).
		Str("dst", e.Dst).
		Msg(line)

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Notification{
			ID:        e.ID,
			Title:     NotificationTitle,
			Message:   fmt.Sprintf("%s -> %s (%s)", e.Src, e.Dst, e.Service),
			Timestamp: e.Timestamp,
			Fields:    e.Fields(),
		})
	}
}

// Benign logs a benign verdict to the console only.
func (s *Sink) Benign(e Event) {
	s.logger.Info().
		Str("uid", e.UID).
		Msgf("[%s] OK: UID=%s %s->%s %s", e.Timestamp.Format(TimestampLayout), e.UID, e.Src, e.Dst, e.Service)
}

func (s *Sink) append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	_, err := s.f.WriteString(line + "\n")
	return err
}

func (s *Sink) reportWriteError(uid string, err error) {
	if s.errs != nil {
		s.errs.Handle(perrors.NewAlertWriteError(uid, s.path, err))
		return
	}
	s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to append alert.")
}

// Close closes the alert log.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
