// Package classifier is the boundary around the externally trained model.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucid-vigil/flowguard/pkg/features"
)

// MaliciousLabel is the label the model assigns to malicious connections.
const MaliciousLabel = 1

// ErrUnavailable is returned by a model that cannot produce a result.
var ErrUnavailable = errors.New("classifier: result unavailable")

// Classifier predicts a label for one feature vector.
type Classifier interface {
	Predict(ctx context.Context, v features.Vector) (int, error)
}

// Scorer is implemented by classifiers that expose a confidence score.
type Scorer interface {
	Confidence(ctx context.Context, v features.Vector) (float64, error)
}

// Outcome is the result of one classifier call. Err is set when the label
// or score could not be produced; Label and Score are then meaningless.
type Outcome struct {
	Label    int
	Score    float64
	HasScore bool
	Err      error
}

// Malicious reports whether the outcome is a successful malicious verdict.
func (o Outcome) Malicious() bool {
	return o.Err == nil && o.Label == MaliciousLabel
}

// Evaluate runs the classifier, and its scorer when it has one, turning any
// failure (including a panic inside the model) into Outcome.Err.
func Evaluate(ctx context.Context, c Classifier, v features.Vector) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: fmt.Errorf("classifier panic: %v", r)}
		}
	}()

	label, err := c.Predict(ctx, v)
	if err != nil {
		return Outcome{Err: fmt.Errorf("predict: %w", err)}
	}
	out.Label = label

	if s, ok := c.(Scorer); ok {
		score, err := s.Confidence(ctx, v)
		if err != nil {
			return Outcome{Err: fmt.Errorf("confidence: %w", err)}
		}
		out.Score = score
		out.HasScore = true
	}
	return out
}

// Func adapts a plain function to the Classifier interface.
type Func func(v features.Vector) int

// Predict calls f.
func (f Func) Predict(_ context.Context, v features.Vector) (int, error) {
	return f(v), nil
}
