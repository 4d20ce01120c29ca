// pkg/errors/stage_errors.go
package errors

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Stage names the pipeline step a per-record error came from.
type Stage string

const (
	StageClassify   Stage = "classify"
	StageAlertWrite Stage = "alert_write"
	StageNotify     Stage = "notify"
	StageRead       Stage = "read"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// StageError is a recovered failure while processing one record. The loop
// keeps running after every StageError.
type StageError struct {
	Stage     Stage     `json:"stage"`
	UID       string    `json:"uid,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Cause     error     `json:"-"`
}

// Error implements the error interface
func (se *StageError) Error() string {
	if se.UID != "" {
		return fmt.Sprintf("[%s] uid=%s: %s: %v", se.Stage, se.UID, se.Message, se.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", se.Stage, se.Message, se.Cause)
}

// Unwrap returns the underlying cause
func (se *StageError) Unwrap() error {
	return se.Cause
}

// Handler logs recovered stage errors and counts them per stage.
type Handler struct {
	logger  zerolog.Logger
	counter *prometheus.CounterVec
}

// NewHandler creates a new error handler. counter may be nil.
func NewHandler(logger zerolog.Logger, counter *prometheus.CounterVec) *Handler {
	return &Handler{
		logger:  logger.With().Str("component", "error_handler").Logger(),
		counter: counter,
	}
}

// Handle records err. It never fails and never stops the caller.
func (h *Handler) Handle(err *StageError) {
	logEvent := h.getLogEvent(err.Severity).
		Str("stage", string(err.Stage)).
		Str("severity", string(err.Severity))

	if err.UID != "" {
		logEvent = logEvent.Str("uid", err.UID)
	}
	if err.Cause != nil {
		logEvent = logEvent.AnErr("cause", err.Cause)
	}
	logEvent.Msg(err.Message)

	if h.counter != nil {
		h.counter.WithLabelValues(string(err.Stage)).Inc()
	}
}

func (h *Handler) getLogEvent(severity Severity) *zerolog.Event {
	switch severity {
	case SeverityHigh:
		return h.logger.Error()
	case SeverityMedium:
		return h.logger.Warn()
	default:
		return h.logger.Info()
	}
}

// Helper functions for creating common error types

func NewClassifyError(uid string, cause error) *StageError {
	return &StageError{
		Stage:     StageClassify,
		UID:       uid,
		Message:   "Prediction failed; record dropped",
		Timestamp: time.Now(),
		Severity:  SeverityMedium,
		Cause:     cause,
	}
}

func NewAlertWriteError(uid string, path string, cause error) *StageError {
	return &StageError{
		Stage:     StageAlertWrite,
		UID:       uid,
		Message:   fmt.Sprintf("Failed to append alert to %s", path),
		Timestamp: time.Now(),
		Severity:  SeverityHigh,
		Cause:     cause,
	}
}

func NewNotifyError(uid string, notifier string, cause error) *StageError {
	return &StageError{
		Stage:     StageNotify,
		UID:       uid,
		Message:   fmt.Sprintf("Notification via %s failed", notifier),
		Timestamp: time.Now(),
		Severity:  SeverityLow,
		Cause:     cause,
	}
}

func NewReadError(path string, cause error) *StageError {
	return &StageError{
		Stage:     StageRead,
		Message:   fmt.Sprintf("Failed to read %s", path),
		Timestamp: time.Now(),
		Severity:  SeverityMedium,
		Cause:     cause,
	}
}
