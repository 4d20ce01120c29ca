package notify

import (
	"context"
	"sync"
	"time"

	perrors "github.com/lucid-vigil/flowguard/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Dispatcher fans a notification out to every registered notifier. Delivery
// is best-effort: failures are logged and counted, never returned.
type Dispatcher struct {
	notifiers []Notifier
	enabled   bool
	limiter   *rate.Limiter
	errs      *perrors.Handler
	counter   *prometheus.CounterVec
	logger    zerolog.Logger
	mu        sync.RWMutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRateLimit allows at most perMinute notifications per minute with a
// burst of the same size. perMinute <= 0 disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(d *Dispatcher) {
		if perMinute <= 0 {
			d.limiter = nil
			return
		}
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// WithCounter counts notifications by status (sent, failed, rate_limited).
func WithCounter(c *prometheus.CounterVec) Option {
	return func(d *Dispatcher) { d.counter = c }
}

// WithErrorHandler reports notifier failures as stage errors.
func WithErrorHandler(h *perrors.Handler) Option {
	return func(d *Dispatcher) { d.errs = h }
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(enabled bool, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		enabled: enabled,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a notifier.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.notifiers = append(d.notifiers, n)
	d.logger.Info().Str("notifier", n.Name()).Msg("Notifier registered.")
}

// Notify delivers n to every notifier.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if !d.IsEnabled() {
		d.logger.Debug().Str("id", n.ID).Msg("Notifications are disabled, skipping.")
		return
	}
	if d.limiter != nil && !d.limiter.Allow() {
		d.logger.Warn().Str("id", n.ID).Msg("Notification rate limit reached, dropping notification.")
		d.count("rate_limited")
		return
	}

	d.mu.RLock()
	notifiers := append([]Notifier(nil), d.notifiers...)
	d.mu.RUnlock()

	for _, notifier := range notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			d.count("failed")
			if d.errs != nil {
				d.errs.Handle(perrors.NewNotifyError(n.Fields["uid"], notifier.Name(), err))
			} else {
				d.logger.Warn().Err(err).Str("notifier", notifier.Name()).Msg("Notification failed.")
			}
			continue
		}
		d.count("sent")
	}
}

func (d *Dispatcher) count(status string) {
	if d.counter != nil {
		d.counter.WithLabelValues(status).Inc()
	}
}

// IsEnabled returns whether notifications are enabled
func (d *Dispatcher) IsEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables notifications
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
	d.logger.Info().Bool("enabled", enabled).Msg("Notification status changed.")
}
