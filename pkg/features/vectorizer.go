// Package features turns connection records into classifier input vectors.
package features

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

const (
	// HashBuckets is the range of the fallback code for categoricals without an encoder.
	HashBuckets = 1000
	// HashFallbackVersion identifies the fallback scheme (xxhash64 mod HashBuckets).
	HashFallbackVersion = "xxh64-mod1000-v1"
)

// numericFields are parsed as numbers; every other feature is categorical.
var numericFields = map[string]struct{}{
	"duration":      {},
	"orig_bytes":    {},
	"resp_bytes":    {},
	"total_bytes":   {},
	"sbytes":        {},
	"dbytes":        {},
	"spkts":         {},
	"dpkts":         {},
	"sload":         {},
	"dload":         {},
	"orig_pkts":     {},
	"resp_pkts":     {},
	"orig_ip_bytes": {},
	"resp_ip_bytes": {},
}

// Vector is the ordered numeric input of the classifier.
type Vector []float64

// Source is anything that can look up a raw field value.
type Source interface {
	Get(field string) (string, bool)
}

// IsNumeric reports whether feature is parsed as a number.
func IsNumeric(feature string) bool {
	_, ok := numericFields[strings.ToLower(feature)]
	return ok
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithFallbackHook is called every time a categorical feature is hashed
// because no encoder exists for it.
func WithFallbackHook(f func(feature string)) Option {
	return func(v *Vectorizer) { v.onFallback = f }
}

// Vectorizer maps records onto a fixed feature schema.
type Vectorizer struct {
	logger     zerolog.Logger
	onFallback func(feature string)

	mu     sync.Mutex
	warned map[string]bool
}

// NewVectorizer creates a Vectorizer.
func NewVectorizer(logger zerolog.Logger, opts ...Option) *Vectorizer {
	v := &Vectorizer{
		logger: logger.With().Str("component", "vectorizer").Logger(),
		warned: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Vectorize returns one value per entry of schema, in schema order. Missing
// and unset values are zero.
func (v *Vectorizer) Vectorize(rec Source, schema []string, encoders Encoders) Vector {
	out := make(Vector, len(schema))
	for i, feature := range schema {
		raw, ok := rec.Get(feature)
		if !ok || raw == "" || raw == "-" {
			continue
		}

		if IsNumeric(feature) {
			out[i] = ParseNumber(raw)
			continue
		}

		if enc, ok := encoders.Lookup(feature); ok {
			out[i] = float64(enc.Encode(raw))
			continue
		}

		v.degraded(feature)
		out[i] = float64(HashBucket(raw))
	}
	return out
}

func (v *Vectorizer) degraded(feature string) {
	if v.onFallback != nil {
		v.onFallback(feature)
	}

	v.mu.Lock()
	first := !v.warned[feature]
	v.warned[feature] = true
	v.mu.Unlock()

	if first {
		v.logger.Warn().
			Str("feature", feature).
			Str("scheme", HashFallbackVersion).
			Msg("No encoder for categorical feature; using hash buckets. Predictions for this feature do not match training-time encoding.")
	}
}

// ParseNumber parses raw as an integer when it has no decimal point and as a
// float otherwise. Anything unparsable is 0.
func ParseNumber(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ".") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0
		}
		return f
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return float64(n)
}

// HashBucket is the fallback code for a categorical value. It is stable
// across runs and hosts.
func HashBucket(value string) int {
	return int(xxhash.Sum64String(value) % HashBuckets)
}
