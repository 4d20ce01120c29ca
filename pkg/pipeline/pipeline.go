// Package pipeline turns connection-log lines into verdicts and alerts.
package pipeline

import (
	"context"
	"time"

	"github.com/lucid-vigil/flowguard/pkg/alert"
	"github.com/lucid-vigil/flowguard/pkg/classifier"
	"github.com/lucid-vigil/flowguard/pkg/dedup"
	perrors "github.com/lucid-vigil/flowguard/pkg/errors"
	"github.com/lucid-vigil/flowguard/pkg/features"
	"github.com/lucid-vigil/flowguard/pkg/metrics"
	"github.com/lucid-vigil/flowguard/pkg/zeek"
	"github.com/rs/zerolog"
)

// AlertSink receives verdicts.
type AlertSink interface {
	Alert(ctx context.Context, e alert.Event)
	Benign(e alert.Event)
}

// Pipeline processes one record line at a time, in the order lines are
// handed to it. It is not safe for concurrent use.
type Pipeline struct {
	featureSchema []string
	encoders      features.Encoders
	vectorizer    *features.Vectorizer
	dedup         *dedup.Deduplicator
	model         classifier.Classifier
	sink          AlertSink
	errs          *perrors.Handler
	metrics       *metrics.PipelineMetrics
	logger        zerolog.Logger
	now           func() time.Time
}

// Config holds the collaborators of a Pipeline. Encoders and Metrics may be nil.
type Config struct {
	FeatureSchema []string
	Encoders      features.Encoders
	Vectorizer    *features.Vectorizer
	Dedup         *dedup.Deduplicator
	Model         classifier.Classifier
	Sink          AlertSink
	Errors        *perrors.Handler
	Metrics       *metrics.PipelineMetrics
	Logger        zerolog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger.With().Str("component", "pipeline").Logger()
	p := &Pipeline{
		featureSchema: cfg.FeatureSchema,
		encoders:      cfg.Encoders,
		vectorizer:    cfg.Vectorizer,
		dedup:         cfg.Dedup,
		model:         cfg.Model,
		sink:          cfg.Sink,
		errs:          cfg.Errors,
		metrics:       cfg.Metrics,
		logger:        logger,
		now:           time.Now,
	}
	if p.vectorizer == nil {
		p.vectorizer = features.NewVectorizer(cfg.Logger)
	}
	if p.dedup == nil {
		p.dedup = dedup.NewDeduplicator(dedup.Config{})
	}
	if p.errs == nil {
		p.errs = perrors.NewHandler(cfg.Logger, nil)
	}
	return p
}

// HandleLine runs one record line through parse, dedup, vectorize, classify
// and alert. Malformed lines, duplicates and classifier failures drop the
// record; nothing here stops the caller.
func (p *Pipeline) HandleLine(ctx context.Context, schema zeek.Schema, line string) {
	if p.metrics != nil {
		p.metrics.LinesTotal.Inc()
	}

	rec, ok := zeek.ParseLine(line, schema)
	if !ok {
		p.countRecord("malformed")
		p.logger.Debug().Int("want_fields", len(schema)).Msg("Dropping line with unexpected field count.")
		return
	}

	uid := rec.UID()
	if !p.dedup.Admit(uid) {
		p.countRecord("duplicate")
		p.logger.Debug().Str("uid", uid).Msg("Duplicate connection, skipping.")
		return
	}
	p.countRecord("parsed")
	if p.metrics != nil {
		p.metrics.DedupEntries.Set(float64(p.dedup.Len()))
	}

	vec := p.vectorizer.Vectorize(rec, p.featureSchema, p.encoders)

	out := classifier.Evaluate(ctx, p.model, vec)
	if out.Err != nil {
		p.errs.Handle(perrors.NewClassifyError(uid, out.Err))
		return
	}

	event := alert.NewEvent(rec, p.now())
	if out.HasScore {
		event = event.WithScore(out.Score)
	}

	if out.Malicious() {
		p.countVerdict("malicious")
		p.sink.Alert(ctx, event)
		return
	}
	p.countVerdict("benign")
	p.sink.Benign(event)
}

// Seen returns the number of identifiers remembered by the deduplicator.
func (p *Pipeline) Seen() int {
	return p.dedup.Len()
}

func (p *Pipeline) countRecord(outcome string) {
	if p.metrics != nil {
		p.metrics.RecordsTotal.WithLabelValues(outcome).Inc()
	}
}

func (p *Pipeline) countVerdict(verdict string) {
	if p.metrics != nil {
		p.metrics.PredictionsTotal.WithLabelValues(verdict).Inc()
	}
}
