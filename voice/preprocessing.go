package voice

// Feature Selection and Scaling
//
// Each downstream pipeline sees only K of the 129 extracted features, chosen
// offline, standardised with statistics fitted on the training set:
//
//   out[i] = (features[selected[i]] - mean[i]) / std[i]
//
// Scaling statistics may be stored either per selected feature (length K) or
// for the full feature layout (length 129); the latter is indexed through the
// selection, which is equivalent to scaling first and selecting afterwards.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PreprocessingParams is an immutable selection plus standardisation table.
type PreprocessingParams struct {
	selected []int
	mean     []float64
	std      []float64
}

type paramsFile struct {
	Selected      []int     `json:"selected,omitempty"`
	SelectedNames []string  `json:"selected_names,omitempty"`
	Mean          []float64 `json:"mean"`
	Std           []float64 `json:"std"`
}

// ProcessedVector is a selected and standardised feature vector.
type ProcessedVector []float64

// WithChannelAxis reshapes the vector to (K, 1), the layout expected by
// sequence classifiers.
func (v ProcessedVector) WithChannelAxis() [][]float64 {
	out := make([][]float64, len(v))
	for i, x := range v {
		out[i] = []float64{x}
	}
	return out
}

// NewPreprocessingParams validates and copies a selection table. mean and std
// must have either len(selected) or FeatureCount entries. Zero deviations are
// treated as 1 so constant features pass through centred.
func NewPreprocessingParams(selected []int, mean, std []float64) (*PreprocessingParams, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: empty feature selection", ErrDimensionMismatch)
	}
	if len(mean) != len(std) {
		return nil, fmt.Errorf("%w: %d means but %d deviations", ErrDimensionMismatch, len(mean), len(std))
	}

	fullWidth := len(mean) == FeatureCount && len(selected) != FeatureCount
	if len(mean) != len(selected) && !fullWidth {
		return nil, fmt.Errorf("%w: %d selected features but %d scaling entries",
			ErrDimensionMismatch, len(selected), len(mean))
	}

	p := &PreprocessingParams{
		selected: make([]int, len(selected)),
		mean:     make([]float64, len(selected)),
		std:      make([]float64, len(selected)),
	}
	for i, idx := range selected {
		if idx < 0 || idx >= FeatureCount {
			return nil, fmt.Errorf("%w: selected index %d outside [0,%d)", ErrDimensionMismatch, idx, FeatureCount)
		}
		src := i
		if fullWidth {
			src = idx
		}
		p.selected[i] = idx
		p.mean[i] = mean[src]
		p.std[i] = std[src]
		if p.std[i] == 0 {
			p.std[i] = 1
		}
	}
	return p, nil
}

// LoadPreprocessingParams reads a params JSON file. The selection may be
// given as indices ("selected") or as feature names ("selected_names").
func LoadPreprocessingParams(path string) (*PreprocessingParams, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read preprocessing params: %w", err)
	}

	var raw paramsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse preprocessing params: %w", err)
	}

	selected := raw.Selected
	if len(selected) == 0 && len(raw.SelectedNames) > 0 {
		selected = make([]int, len(raw.SelectedNames))
		for i, name := range raw.SelectedNames {
			idx, ok := FeatureIndex(name)
			if !ok {
				return nil, fmt.Errorf("%w: unknown feature %q", ErrDimensionMismatch, name)
			}
			selected[i] = idx
		}
	}

	return NewPreprocessingParams(selected, raw.Mean, raw.Std)
}

// Dimension is K, the length of vectors produced by Preprocess.
func (p *PreprocessingParams) Dimension() int {
	if p == nil {
		return 0
	}
	return len(p.selected)
}

// Selected returns a copy of the selected feature indices.
func (p *PreprocessingParams) Selected() []int {
	return append([]int(nil), p.selected...)
}

// Preprocess selects and standardises features. It does not modify its input.
func Preprocess(features FeatureVector, params *PreprocessingParams) (ProcessedVector, error) {
	if params == nil {
		return nil, ErrModelNotLoaded
	}
	out := make(ProcessedVector, len(params.selected))
	for i, idx := range params.selected {
		if idx < 0 || idx >= FeatureCount {
			return nil, fmt.Errorf("%w: selected index %d outside [0,%d)", ErrDimensionMismatch, idx, FeatureCount)
		}
		out[i] = (features[idx] - params.mean[i]) / params.std[i]
	}
	return out, nil
}

// Save writes the params in the format LoadPreprocessingParams reads, with
// the selection given by feature name.
func (p *PreprocessingParams) Save(path string) error {
	names := FeatureNames()
	raw := paramsFile{
		SelectedNames: make([]string, len(p.selected)),
		Mean:          p.mean,
		Std:           p.std,
	}
	for i, idx := range p.selected {
		raw.SelectedNames[i] = names[idx]
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preprocessing params: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create params directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
