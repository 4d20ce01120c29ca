// Package artifacts loads the feature schema and categorical encoders
// produced by the offline training pipeline. Both files are YAML (or JSON).
package artifacts

import (
	"errors"
	"fmt"
	"os"

	"github.com/lucid-vigil/flowguard/pkg/features"
	"gopkg.in/yaml.v3"
)

// ErrEmptySchema is returned for a features file without any names.
var ErrEmptySchema = errors.New("artifacts: feature schema is empty")

// LoadFeatureSchema reads the ordered list of feature names the model expects.
//
//	- duration
//	- proto
//	- service
func LoadFeatureSchema(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature schema: %w", err)
	}

	var names []string
	if err := yaml.Unmarshal(b, &names); err != nil {
		return nil, fmt.Errorf("parse feature schema %s: %w", path, err)
	}
	if len(names) == 0 {
		return nil, ErrEmptySchema
	}

	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("feature schema %s: empty name at position %d", path, i)
		}
		if seen[n] {
			return nil, fmt.Errorf("feature schema %s: duplicate feature %q", path, n)
		}
		seen[n] = true
	}
	return names, nil
}

// LoadEncoders reads the per-feature trained class lists. A class's code is
// its position in the list.
//
//	proto: [icmp, tcp, udp]
//	service: ["-", dns, http, ssl]
func LoadEncoders(path string) (features.Encoders, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read encoders: %w", err)
	}

	var classes map[string][]string
	if err := yaml.Unmarshal(b, &classes); err != nil {
		return nil, fmt.Errorf("parse encoders %s: %w", path, err)
	}

	encoders := make(features.Encoders, len(classes))
	for feature, cls := range classes {
		encoders[feature] = features.NewEncoder(cls)
	}
	return encoders, nil
}
