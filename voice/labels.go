package voice

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LabelCodec maps class indices of a model output to label strings.
type LabelCodec struct {
	classes []string
}

type labelsFile struct {
	Classes []string `json:"classes"`
}

// NewLabelCodec copies classes; index i decodes to classes[i].
func NewLabelCodec(classes []string) (*LabelCodec, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("label codec has no classes")
	}
	return &LabelCodec{classes: append([]string(nil), classes...)}, nil
}

// LoadLabelCodec reads {"classes": [...]} from path.
func LoadLabelCodec(path string) (*LabelCodec, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read label codec: %w", err)
	}
	var raw labelsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse label codec: %w", err)
	}
	return NewLabelCodec(raw.Classes)
}

// Len is the number of classes.
func (c *LabelCodec) Len() int {
	if c == nil {
		return 0
	}
	return len(c.classes)
}

// Decode returns the label for a class index.
func (c *LabelCodec) Decode(index int) (string, error) {
	if index < 0 || index >= c.Len() {
		return "", fmt.Errorf("%w: class index %d outside [0,%d)", ErrDimensionMismatch, index, c.Len())
	}
	return c.classes[index], nil
}
