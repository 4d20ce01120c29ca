package alert

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lucid-vigil/flowguard/pkg/zeek"
)

// TimestampLayout is the timestamp format of alert-log lines.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Event is one malicious-verdict alert.
type Event struct {
	ID        string
	Timestamp time.Time
	UID       string
	Src       string
	Dst       string
	Proto     string
	Service   string
	Score     float64
	HasScore  bool
}

// NewEvent builds an alert for rec. Missing fields, the uid included, are
// shown as "-".
func NewEvent(rec zeek.Record, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: now,
		UID:       rec.Value("uid"),
		Src:       rec.Value("id.orig_h"),
		Dst:       rec.Value("id.resp_h"),
		Proto:     rec.Value("proto"),
		Service:   rec.Value("service"),
	}
}

// WithScore returns e carrying a confidence score.
func (e Event) WithScore(score float64) Event {
	e.Score = score
	e.HasScore = true
	return e
}

// Line formats e as one alert-log line, without the trailing newline.
func (e Event) Line() string {
	return fmt.Sprintf("[%s] ALERT: Malicious UID=%s %s->%s proto=%s service=%s score=%s",
		e.Timestamp.Format(TimestampLayout), e.UID, e.Src, e.Dst, e.Proto, e.Service, e.scoreText())
}

func (e Event) scoreText() string {
	if !e.HasScore {
		return ""
	}
	return strconv.FormatFloat(e.Score, 'f', -1, 64)
}

// Fields returns the event as flat key/value pairs.
func (e Event) Fields() map[string]string {
	return map[string]string{
		"id":      e.ID,
		"uid":     e.UID,
		"src":     e.Src,
		"dst":     e.Dst,
		"proto":   e.Proto,
		"service": e.Service,
		"score":   e.scoreText(),
	}
}
