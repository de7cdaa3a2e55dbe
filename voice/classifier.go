package voice

import (
	"context"
	"fmt"
	"math"
)

// Model is an externally trained classifier. Predict receives one sample of
// shape (K, 1) and returns a probability per class.
type Model interface {
	Predict(ctx context.Context, input [][]float64) ([]float64, error)
}

// Classifier maps a model's output distribution to a label. A Classifier
// built without a model or codec reports ErrModelNotLoaded on every call.
type Classifier struct {
	model Model
	codec *LabelCodec
}

// NewClassifier wraps model and codec. Either may be nil.
func NewClassifier(model Model, codec *LabelCodec) *Classifier {
	return &Classifier{model: model, codec: codec}
}

// Ready reports whether both model and codec are present.
func (c *Classifier) Ready() bool {
	return c != nil && c.model != nil && c.codec != nil
}

// Predict runs the model and decodes the arg-max class. Ties resolve to the
// lowest index. On failure the returned label is a sentinel
// (ModelNotLoadedLabel or ErrorLabel) alongside the error.
func (c *Classifier) Predict(ctx context.Context, input [][]float64) (string, error) {
	if !c.Ready() {
		return ModelNotLoadedLabel, ErrModelNotLoaded
	}

	probs, err := c.model.Predict(ctx, input)
	if err != nil {
		return ErrorLabel, fmt.Errorf("model prediction failed: %w", err)
	}
	if len(probs) != c.codec.Len() {
		return ErrorLabel, fmt.Errorf("%w: model returned %d classes, codec has %d",
			ErrDimensionMismatch, len(probs), c.codec.Len())
	}

	best := 0
	for i, p := range probs {
		if math.IsNaN(p) {
			continue
		}
		if p > probs[best] || math.IsNaN(probs[best]) {
			best = i
		}
	}

	label, err := c.codec.Decode(best)
	if err != nil {
		return ErrorLabel, err
	}
	return label, nil
}
