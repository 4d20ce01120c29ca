package zeek

import "strings"

// Record maps each schema field of one log line to its raw value.
type Record struct {
	schema Schema
	values []string
}

// ParseLine splits a tab-delimited line against schema. A line whose column
// count differs from the schema yields ok == false.
func ParseLine(line string, schema Schema) (Record, bool) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, "\t")
	if len(parts) != len(schema) {
		return Record{}, false
	}
	return Record{schema: schema, values: parts}, true
}

// Get returns the raw value of field and whether the record has that field.
func (r Record) Get(field string) (string, bool) {
	i := r.schema.Index(field)
	if i < 0 {
		return "", false
	}
	return r.values[i], true
}

// Value returns the raw value of field, or Unset when absent.
func (r Record) Value(field string) string {
	if v, ok := r.Get(field); ok {
		return v
	}
	return Unset
}

// Len is the number of fields in the record.
func (r Record) Len() int {
	return len(r.values)
}

// Fields returns the record as a field → value map.
func (r Record) Fields() map[string]string {
	m := make(map[string]string, len(r.values))
	for i, f := range r.schema {
		m[f] = r.values[i]
	}
	return m
}

// UID is the connection identifier, empty when the record has none.
func (r Record) UID() string {
	v, ok := r.Get("uid")
	if !ok || v == Unset {
		return ""
	}
	return v
}
