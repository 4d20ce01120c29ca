package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/lucid-vigil/flowguard/pkg/alert"
	"github.com/lucid-vigil/flowguard/pkg/classifier"
	"github.com/lucid-vigil/flowguard/pkg/features"
	"github.com/lucid-vigil/flowguard/pkg/metrics"
	"github.com/lucid-vigil/flowguard/pkg/zeek"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSchema    = zeek.Schema{"uid", "id.orig_h", "id.resp_h", "proto", "service", "duration"}
	featureSchema = []string{"duration", "proto", "service"}
	alertLine     = regexp.MustCompile(`^\[[^\]]+\] ALERT: Malicious UID=(\S*) (\S+)->(\S+) proto=(\S+) service=(\S+) score=(\S*)$`)
)

// countingModel flags connections longer than half a second.
type countingModel struct {
	calls int
	err   error
	seen  []features.Vector
}

func (m *countingModel) Predict(_ context.Context, v features.Vector) (int, error) {
	m.calls++
	m.seen = append(m.seen, v)
	if m.err != nil {
		return 0, m.err
	}
	if v[0] > 0.5 {
		return classifier.MaliciousLabel, nil
	}
	return 0, nil
}

type fixture struct {
	pipeline  *Pipeline
	model     *countingModel
	alertPath string
	sink      *alert.Sink
	metrics   *metrics.PipelineMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alertPath := filepath.Join(t.TempDir(), "alerts.log")
	sink, err := alert.NewSink(alertPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })

	model := &countingModel{}
	m := metrics.NewPipelineMetrics(prometheus.NewRegistry())
	p := New(Config{
		FeatureSchema: featureSchema,
		Model:         model,
		Sink:          sink,
		Metrics:       m,
		Logger:        zerolog.Nop(),
	})
	return &fixture{pipeline: p, model: model, alertPath: alertPath, sink: sink, metrics: m}
}

func (f *fixture) alerts(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.alertPath)
	require.NoError(t, err)
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestHandleLine_EndToEndAlert(t *testing.T) {
	f := newFixture(t)

	f.pipeline.HandleLine(context.Background(), testSchema, "u1\t10.0.0.1\t10.0.0.2\ttcp\thttp\t0.75\n")

	lines := f.alerts(t)
	require.Len(t, lines, 1)
	m := alertLine.FindStringSubmatch(lines[0])
	require.NotNil(t, m, lines[0])
	assert.Equal(t, []string{"u1", "10.0.0.1", "10.0.0.2", "tcp", "http", ""}, m[1:])

	require.Len(t, f.model.seen, 1)
	assert.Len(t, f.model.seen[0], len(featureSchema))
	assert.Equal(t, 0.75, f.model.seen[0][0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PredictionsTotal.WithLabelValues("malicious")))
}

func TestHandleLine_ReplayIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	line := "u1\t10.0.0.1\t10.0.0.2\ttcp\thttp\t0.75"

	f.pipeline.HandleLine(context.Background(), testSchema, line)
	f.pipeline.HandleLine(context.Background(), testSchema, line)

	assert.Equal(t, 1, f.model.calls)
	assert.Len(t, f.alerts(t), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsTotal.WithLabelValues("duplicate")))
}

func TestHandleLine_DedupSequence(t *testing.T) {
	f := newFixture(t)
	for _, uid := range []string{"A", "B", "A"} {
		f.pipeline.HandleLine(context.Background(), testSchema, uid+"\t10.0.0.1\t10.0.0.2\tudp\tdns\t0.1")
	}

	assert.Equal(t, 2, f.model.calls)
	assert.Equal(t, 2, f.pipeline.Seen())
	assert.Empty(t, f.alerts(t))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PredictionsTotal.WithLabelValues("benign")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DedupEntries))
}

func TestHandleLine_UnsetUIDAlwaysProcessed(t *testing.T) {
	f := newFixture(t)
	line := "-\t10.0.0.1\t10.0.0.2\ttcp\thttp\t0.9"

	f.pipeline.HandleLine(context.Background(), testSchema, line)
	f.pipeline.HandleLine(context.Background(), testSchema, line)

	assert.Equal(t, 2, f.model.calls)
	alerts := f.alerts(t)
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0], "UID=- 10.0.0.1->10.0.0.2")
}

func TestHandleLine_MalformedDropped(t *testing.T) {
	f := newFixture(t)
	f.pipeline.HandleLine(context.Background(), testSchema, "u1\t10.0.0.1\ttcp")

	assert.Zero(t, f.model.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsTotal.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LinesTotal))
}

func TestHandleLine_ClassifierFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.model.err = errors.New("model unavailable")

	f.pipeline.HandleLine(context.Background(), testSchema, "u1\t10.0.0.1\t10.0.0.2\ttcp\thttp\t0.75")
	assert.Empty(t, f.alerts(t))

	f.model.err = nil
	f.pipeline.HandleLine(context.Background(), testSchema, "u2\t10.0.0.3\t10.0.0.4\ttcp\tssh\t0.9")

	lines := f.alerts(t)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "UID=u2")
	assert.Equal(t, 2, f.model.calls)
}

type scoredModel struct{ countingModel }

func (m *scoredModel) Confidence(context.Context, features.Vector) (float64, error) {
	return 0.97, nil
}

func TestHandleLine_ScoreInAlert(t *testing.T) {
	alertPath := filepath.Join(t.TempDir(), "alerts.log")
	sink, err := alert.NewSink(alertPath, zerolog.Nop())
	require.NoError(t, err)
	defer sink.Close()

	p := New(Config{
		FeatureSchema: featureSchema,
		Encoders:      features.Encoders{"proto": features.NewEncoder([]string{"tcp", "udp"})},
		Model:         &scoredModel{},
		Sink:          sink,
		Logger:        zerolog.Nop(),
	})
	p.HandleLine(context.Background(), testSchema, "u7\t10.0.0.1\t10.0.0.2\ttcp\thttp\t2.5")

	data, err := os.ReadFile(alertPath)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "score=0.97\n"), string(data))
}
