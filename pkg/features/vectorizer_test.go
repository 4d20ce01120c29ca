package features

import (
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/lucid-vigil/flowguard/pkg/monitortest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fields map[string]string

func (f fields) Get(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"10", 10},
		{"0.5", 0.5},
		{"10.0", 10},
		{"-3", -3},
		{"abc", 0},
		{"1.2.3", 0},
		{"1e5", 0},
		{"", 0},
		{" 42 ", 42},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.raw))
		})
	}
}

func TestVectorize_LengthMatchesSchema(t *testing.T) {
	v := NewVectorizer(zerolog.Nop())
	schema := []string{"duration", "orig_bytes", "proto", "service", "conn_state", "missing_feature"}

	sparse := v.Vectorize(fields{}, schema, nil)
	assert.Len(t, sparse, len(schema))
	for _, x := range sparse {
		assert.Zero(t, x)
	}

	full := v.Vectorize(fields{
		"duration": "1.5", "orig_bytes": "300", "proto": "tcp",
		"service": "dns", "conn_state": "SF", "extra": "ignored",
	}, schema, nil)
	assert.Len(t, full, len(schema))
	assert.Equal(t, 1.5, full[0])
	assert.Equal(t, 300.0, full[1])
	assert.Zero(t, full[5])
}

func TestVectorize_NumericFieldsCaseInsensitive(t *testing.T) {
	v := NewVectorizer(zerolog.Nop())
	out := v.Vectorize(fields{"Duration": "10", "SBYTES": "0.5", "dpkts": "x"}, []string{"Duration", "SBYTES", "dpkts"}, nil)
	assert.Equal(t, Vector{10, 0.5, 0}, out)
}

func TestVectorize_UnsetIsZero(t *testing.T) {
	v := NewVectorizer(zerolog.Nop())
	enc := Encoders{"proto": NewEncoder([]string{"-", "tcp"})}
	out := v.Vectorize(fields{"duration": "-", "proto": "-", "service": ""}, []string{"duration", "proto", "service"}, enc)
	assert.Equal(t, Vector{0, 0, 0}, out)
}

func TestVectorize_EncoderAndSentinel(t *testing.T) {
	v := NewVectorizer(zerolog.Nop())
	enc := Encoders{"proto": NewEncoder([]string{"icmp", "tcp", "udp"})}

	out := v.Vectorize(fields{"proto": "udp"}, []string{"proto"}, enc)
	assert.Equal(t, Vector{2}, out)

	out = v.Vectorize(fields{"proto": "sctp"}, []string{"proto"}, enc)
	assert.Equal(t, Vector{UnseenCode}, out)
	for code := 0; code < enc["proto"].Size(); code++ {
		assert.NotEqual(t, float64(code), out[0])
	}
}

func TestVectorize_HashFallback(t *testing.T) {
	lc := &monitortest.LogCapture{}
	var hooked []string
	v := NewVectorizer(zerolog.New(lc), WithFallbackHook(func(f string) { hooked = append(hooked, f) }))
	schema := []string{"service"}

	first := v.Vectorize(fields{"service": "http"}, schema, nil)
	again := v.Vectorize(fields{"service": "http"}, schema, nil)
	other := v.Vectorize(fields{"service": "ssh"}, schema, Encoders{"proto": NewEncoder(nil)})

	assert.Equal(t, first, again)
	assert.GreaterOrEqual(t, first[0], 0.0)
	assert.Less(t, first[0], float64(HashBuckets))
	assert.Equal(t, float64(HashBucket("ssh")), other[0])
	assert.Equal(t, []string{"service", "service", "service"}, hooked)

	// the degraded-mode warning is logged once per feature
	logs := strings.Join(lc.GetLogs(), "")
	assert.Equal(t, 1, strings.Count(logs, "No encoder for categorical feature"))
	assert.Contains(t, logs, HashFallbackVersion)
}

func TestHashBucket_Stable(t *testing.T) {
	for _, s := range []string{"http", "dns", "ssl", ""} {
		assert.Equal(t, HashBucket(s), HashBucket(s))
		assert.Equal(t, int(xxhash.Sum64String(s)%HashBuckets), HashBucket(s))
	}
}

func TestEncoder(t *testing.T) {
	enc := NewEncoder([]string{"a", "b", "a"})
	assert.Equal(t, 0, enc.Encode("a"))
	assert.Equal(t, 1, enc.Encode("b"))
	assert.Equal(t, UnseenCode, enc.Encode("c"))
	assert.Equal(t, 2, enc.Size())

	var none Encoders
	_, ok := none.Lookup("proto")
	assert.False(t, ok)
}
