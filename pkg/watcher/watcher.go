// Package watcher tails a Zeek connection log and hands each new record line
// to a LineHandler.
package watcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	perrors "github.com/lucid-vigil/flowguard/pkg/errors"
	"github.com/lucid-vigil/flowguard/pkg/zeek"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// State is the phase the watcher is in.
type State int32

const (
	AwaitingFile State = iota
	ResolvingSchema
	Streaming
)

func (s State) String() string {
	switch s {
	case AwaitingFile:
		return "awaiting_file"
	case ResolvingSchema:
		return "resolving_schema"
	case Streaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// LineHandler receives record lines in file order.
type LineHandler interface {
	HandleLine(ctx context.Context, schema zeek.Schema, line string)
}

// Config holds the watcher's settings.
type Config struct {
	Path             string
	FilePollInterval time.Duration
	LinePollInterval time.Duration
}

// Watcher drives the AwaitingFile → ResolvingSchema → Streaming loop.
type Watcher struct {
	cfg       Config
	handler   LineHandler
	logger    zerolog.Logger
	errs      *perrors.Handler
	rotations prometheus.Counter

	state atomic.Int32

	mu     sync.RWMutex
	schema zeek.Schema

	// wrapReader, when set, wraps each opened log before it is read.
	wrapReader func(io.Reader) io.Reader
}

// seekEnd asks stream to start at the current end of the log.
const seekEnd = -1

// cursor records how far a log was consumed before a read error.
type cursor struct {
	file   os.FileInfo
	offset int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithErrorHandler reports read errors.
func WithErrorHandler(h *perrors.Handler) Option {
	return func(w *Watcher) { w.errs = h }
}

// WithRotationCounter counts detected log replacements and truncations.
func WithRotationCounter(c prometheus.Counter) Option {
	return func(w *Watcher) { w.rotations = c }
}

// New creates a Watcher.
func New(cfg Config, handler LineHandler, logger zerolog.Logger, opts ...Option) *Watcher {
	if cfg.FilePollInterval <= 0 {
		cfg.FilePollInterval = time.Second
	}
	if cfg.LinePollInterval <= 0 {
		cfg.LinePollInterval = 500 * time.Millisecond
	}
	w := &Watcher{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With().Str("component", "watcher").Str("path", cfg.Path).Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.errs == nil {
		w.errs = perrors.NewHandler(logger, nil)
	}
	return w
}

// State returns the current phase.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Schema returns the schema in use, nil before the first resolution.
func (w *Watcher) Schema() zeek.Schema {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.schema
}

func (w *Watcher) setState(s State) {
	if State(w.state.Swap(int32(s))) != s {
		w.logger.Debug().Str("state", s.String()).Msg("Watcher state changed.")
	}
}

// Run watches the log until ctx is cancelled. History present when the log
// is first opened is skipped. After a replacement or truncation the new
// content is read from its beginning. After a read error the same file is
// resumed where reading stopped.
func (w *Watcher) Run(ctx context.Context) error {
	wake, stop := w.startNotify(ctx)
	defer stop()

	fromStart := false
	var resume *cursor
	for {
		w.setState(AwaitingFile)
		if err := w.awaitFile(ctx, wake); err != nil {
			return nil
		}

		w.setState(ResolvingSchema)
		f, info, schema, err := w.openAndResolve()
		if err != nil {
			w.errs.Handle(perrors.NewReadError(w.cfg.Path, err))
			if !sleep(ctx, w.cfg.FilePollInterval, wake) {
				return nil
			}
			continue
		}

		start := w.startOffset(info, fromStart, resume)
		resume = nil

		offset, reason, err := w.stream(ctx, f, info, schema, start, wake)
		f.Close()
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case err != nil:
			w.errs.Handle(perrors.NewReadError(w.cfg.Path, err))
			resume = &cursor{file: info, offset: offset}
			if !sleep(ctx, w.cfg.FilePollInterval, wake) {
				return nil
			}
		case reason != "":
			fromStart = true
		}
	}
}

// startOffset picks where streaming begins in the freshly opened log.
func (w *Watcher) startOffset(opened os.FileInfo, fromStart bool, resume *cursor) int64 {
	if resume != nil {
		if os.SameFile(resume.file, opened) && opened.Size() >= resume.offset {
			return resume.offset
		}
		w.logger.Warn().Int64("offset", resume.offset).
			Msg("Connection log changed while recovering from a read error; reading the new file from the start.")
		if w.rotations != nil {
			w.rotations.Inc()
		}
		return 0
	}
	if fromStart {
		return 0
	}
	return seekEnd
}

func (w *Watcher) awaitFile(ctx context.Context, wake <-chan struct{}) error {
	logged := false
	for {
		if _, err := os.Stat(w.cfg.Path); err == nil {
			return nil
		}
		if !logged {
			w.logger.Info().Msg("Waiting for connection log...")
			logged = true
		}
		if !sleep(ctx, w.cfg.FilePollInterval, wake) {
			return ctx.Err()
		}
	}
}

func (w *Watcher) openAndResolve() (*os.File, os.FileInfo, zeek.Schema, error) {
	f, err := os.Open(w.cfg.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}

	schema, found, err := zeek.ResolveSchema(f)
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}
	if !found {
		w.logger.Warn().Strs("fields", schema).Msgf("'%s' header not found, using fallback field list.", zeek.FieldsMarker)
	}
	w.logger.Info().Strs("fields", schema).Msg("Connection log schema resolved.")

	w.mu.Lock()
	w.schema = schema
	w.mu.Unlock()
	return f, info, schema, nil
}

// stream delivers appended lines from start (or the end of the log for
// seekEnd) until the log is replaced, truncated or removed, ctx is done, or
// a read fails. It returns the offset just past the last delivered line and
// the rotation reason, if any.
func (w *Watcher) stream(ctx context.Context, f *os.File, opened os.FileInfo, schema zeek.Schema, start int64, wake <-chan struct{}) (int64, string, error) {
	var (
		offset int64
		err    error
	)
	if start == seekEnd {
		offset, err = f.Seek(0, io.SeekEnd)
	} else {
		offset, err = f.Seek(start, io.SeekStart)
	}
	if err != nil {
		return start, "", fmt.Errorf("seek: %w", err)
	}
	w.setState(Streaming)
	w.logger.Info().Int64("offset", offset).Msg("Monitoring connection log.")

	var src io.Reader = f
	if w.wrapReader != nil {
		src = w.wrapReader(f)
	}
	reader := bufio.NewReader(src)
	var partial strings.Builder

	for {
		for {
			chunk, err := reader.ReadString('\n')
			offset += int64(len(chunk))
			if errors.Is(err, io.EOF) {
				// hold an unterminated line until the rest of it is written
				partial.WriteString(chunk)
				break
			}
			if err != nil {
				consumed := offset - int64(len(chunk)) - int64(partial.Len())
				return consumed, "", fmt.Errorf("read: %w", err)
			}
			line := chunk
			if partial.Len() > 0 {
				partial.WriteString(chunk)
				line = partial.String()
				partial.Reset()
			}
			w.deliver(ctx, schema, line)
		}

		if reason := w.rotated(opened, offset); reason != "" {
			w.logger.Warn().Str("reason", reason).Int64("offset", offset).
				Msg("Connection log was rotated; re-resolving schema and reading the new file from the start.")
			if w.rotations != nil {
				w.rotations.Inc()
			}
			return offset, reason, nil
		}

		if !sleep(ctx, w.cfg.LinePollInterval, wake) {
			return offset, "", nil
		}
	}
}

func (w *Watcher) deliver(ctx context.Context, schema zeek.Schema, line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
		return
	}
	w.handler.HandleLine(ctx, schema, line)
}

// rotated compares the open file with what the path names now.
func (w *Watcher) rotated(opened os.FileInfo, offset int64) string {
	current, err := os.Stat(w.cfg.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "removed"
	case err != nil:
		return ""
	case !os.SameFile(opened, current):
		return "replaced"
	case current.Size() < offset:
		return "truncated"
	}
	return ""
}

// sleep waits for d, a wakeup, or ctx. It reports false when ctx is done.
func sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	case <-wake:
	}
	return true
}
