// Package zeek reads Zeek conn.log headers and records.
package zeek

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FieldsMarker starts the header line that declares the column order.
const FieldsMarker = "#fields"

// Unset is the token Zeek writes for a field with no value.
const Unset = "-"

// Schema is the ordered list of field names a record conforms to.
type Schema []string

// DefaultSchema is used when the log carries no #fields header.
var DefaultSchema = Schema{
	"ts", "uid", "id.orig_h", "id.orig_p", "id.resp_h", "id.resp_p",
	"proto", "service", "duration", "orig_bytes", "resp_bytes", "conn_state",
}

// Index returns the column of name, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f == name {
			return i
		}
	}
	return -1
}

// ResolveSchema scans r from its current position for the #fields header.
// found is false when the reader hit EOF without one, in which case the
// DefaultSchema is returned. Lines of any length are accepted.
func ResolveSchema(r io.Reader) (schema Schema, found bool, err error) {
	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if strings.HasPrefix(line, FieldsMarker) {
			tokens := strings.Fields(line)
			if tokens[0] == FieldsMarker && len(tokens) >= 2 {
				return Schema(tokens[1:]), true, nil
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("scan for %s header: %w", FieldsMarker, err)
		}
	}

	return append(Schema(nil), DefaultSchema...), false, nil
}
