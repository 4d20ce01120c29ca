package zeek

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSchema(t *testing.T) {
	t.Run("HeaderPresent", func(t *testing.T) {
		log := "#separator \\x09\n#path\tconn\n#fields\tts\tuid\tid.orig_h\tproto\n#types\ttime\tstring\taddr\tenum\n"
		schema, found, err := ResolveSchema(strings.NewReader(log))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, Schema{"ts", "uid", "id.orig_h", "proto"}, schema)
	})

	t.Run("SpaceSeparatedHeader", func(t *testing.T) {
		schema, found, err := ResolveSchema(strings.NewReader("#fields uid proto service\n"))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, Schema{"uid", "proto", "service"}, schema)
	})

	t.Run("FallbackWithoutHeader", func(t *testing.T) {
		schema, found, err := ResolveSchema(strings.NewReader("#path\tconn\n1.0\tC1\n"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, DefaultSchema, schema)

		// the fallback is a copy
		schema[0] = "changed"
		assert.Equal(t, "ts", DefaultSchema[0])
	})

	t.Run("IgnoresSimilarMarker", func(t *testing.T) {
		_, found, err := ResolveSchema(strings.NewReader("#fieldsx\ta\tb\n"))
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("OversizedLineBeforeHeader", func(t *testing.T) {
		log := strings.Repeat("x", 2<<20) + "\n#fields\tuid\tproto\n"
		schema, found, err := ResolveSchema(strings.NewReader(log))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, Schema{"uid", "proto"}, schema)
	})

	t.Run("OversizedLineWithoutHeader", func(t *testing.T) {
		schema, found, err := ResolveSchema(strings.NewReader(strings.Repeat("x", 2<<20)))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, DefaultSchema, schema)
	})

	t.Run("HeaderWithoutTrailingNewline", func(t *testing.T) {
		schema, found, err := ResolveSchema(strings.NewReader("#fields\tuid"))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, Schema{"uid"}, schema)
	})
}

func TestParseLine(t *testing.T) {
	schema := Schema{"uid", "id.orig_h", "id.resp_h", "proto", "service", "duration"}

	rec, ok := ParseLine("u1\t10.0.0.1\t10.0.0.2\ttcp\thttp\t0.75\n", schema)
	require.True(t, ok)
	assert.Equal(t, len(schema), rec.Len())
	assert.Equal(t, "u1", rec.UID())
	assert.Equal(t, "0.75", rec.Value("duration"))
	assert.Equal(t, map[string]string{
		"uid": "u1", "id.orig_h": "10.0.0.1", "id.resp_h": "10.0.0.2",
		"proto": "tcp", "service": "http", "duration": "0.75",
	}, rec.Fields())

	_, present := rec.Get("conn_state")
	assert.False(t, present)
	assert.Equal(t, Unset, rec.Value("conn_state"))
}

func TestParseLine_ArityMismatch(t *testing.T) {
	schema := Schema{"uid", "proto", "service"}

	_, ok := ParseLine("u1\ttcp", schema)
	assert.False(t, ok)

	_, ok = ParseLine("u1\ttcp\thttp\textra", schema)
	assert.False(t, ok)
}

func TestParseLine_VerbatimValues(t *testing.T) {
	schema := Schema{"uid", "service", "history"}
	rec, ok := ParseLine("u9\t-\t ShADad \r\n", schema)
	require.True(t, ok)
	assert.Equal(t, "u9", rec.UID())
	assert.Equal(t, "-", rec.Value("service"))
	assert.Equal(t, " ShADad ", rec.Value("history"))
}

func TestRecord_UnsetUID(t *testing.T) {
	rec, ok := ParseLine("-\ttcp", Schema{"uid", "proto"})
	require.True(t, ok)
	assert.Empty(t, rec.UID())

	rec, ok = ParseLine("tcp", Schema{"proto"})
	require.True(t, ok)
	assert.Empty(t, rec.UID())
}
