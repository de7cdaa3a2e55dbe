package voice

import (
	"fmt"
	"io"
	"math"
)

// FeatureScaleAnalysis summarises the per-column range of a set of feature
// vectors. It is used to fit standardisation statistics and to spot columns
// whose scale would dominate a similarity comparison.
type FeatureScaleAnalysis struct {
	FeatureNames []string
	Count        int
	MinValues    []float64
	MaxValues    []float64
	MeanValues   []float64
	StdValues    []float64
}

// AnalyzeFeatureScales examines a set of feature vectors column by column.
func AnalyzeFeatureScales(vectors []FeatureVector) FeatureScaleAnalysis {
	if len(vectors) == 0 {
		return FeatureScaleAnalysis{}
	}

	analysis := FeatureScaleAnalysis{
		FeatureNames: FeatureNames(),
		Count:        len(vectors),
		MinValues:    make([]float64, FeatureCount),
		MaxValues:    make([]float64, FeatureCount),
		MeanValues:   make([]float64, FeatureCount),
		StdValues:    make([]float64, FeatureCount),
	}

	column := make([]float64, len(vectors))
	for i := 0; i < FeatureCount; i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for j, vec := range vectors {
			v := vec[i]
			column[j] = v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		analysis.MinValues[i] = lo
		analysis.MaxValues[i] = hi
		analysis.MeanValues[i], analysis.StdValues[i] = meanStd(column)
	}

	return analysis
}

// Params fits standardisation statistics for the given selection.
func (f *FeatureScaleAnalysis) Params(selected []int) (*PreprocessingParams, error) {
	if f.Count == 0 {
		return nil, fmt.Errorf("no vectors analysed")
	}
	return NewPreprocessingParams(selected, f.MeanValues, f.StdValues)
}

// WriteReport prints a table of per-feature statistics.
func (f *FeatureScaleAnalysis) WriteReport(w io.Writer) {
	fmt.Fprintf(w, "\n=== Feature Scale Analysis (%d vectors) ===\n", f.Count)
	fmt.Fprintf(w, "%-22s %14s %14s %14s %14s %14s\n", "Feature", "Min", "Max", "Mean", "Std", "Range")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------")

	for i, name := range f.FeatureNames {
		if i >= len(f.MinValues) {
			break
		}
		rangeVal := f.MaxValues[i] - f.MinValues[i]
		fmt.Fprintf(w, "%-22s %14.6f %14.6f %14.6f %14.6f %14.6f\n",
			name, f.MinValues[i], f.MaxValues[i], f.MeanValues[i], f.StdValues[i], rangeVal)
	}
	fmt.Fprintln(w)
}

// CheckScaleIssues flags columns that are constant, highly variable, or large
// enough to dominate an unscaled cosine comparison.
func (f *FeatureScaleAnalysis) CheckScaleIssues() []string {
	issues := []string{}
	if f.Count < 2 {
		return issues
	}

	for i, name := range f.FeatureNames {
		if i >= len(f.MeanValues) {
			break
		}
		if f.StdValues[i] == 0 {
			issues = append(issues, fmt.Sprintf("Feature '%s' is constant across all vectors", name))
			continue
		}
		if math.Abs(f.MeanValues[i]) > 1e-9 {
			coeffVar := f.StdValues[i] / math.Abs(f.MeanValues[i])
			if coeffVar > 2.0 {
				issues = append(issues, fmt.Sprintf(
					"Feature '%s' has high coefficient of variation (%.2f)", name, coeffVar))
			}
		}
	}

	totalSquaredMean := 0.0
	for _, m := range f.MeanValues {
		totalSquaredMean += m * m
	}
	if totalSquaredMean == 0 {
		return issues
	}
	for i, name := range f.FeatureNames {
		if i >= len(f.MeanValues) {
			break
		}
		contribution := (f.MeanValues[i] * f.MeanValues[i]) / totalSquaredMean
		if contribution > 0.2 {
			issues = append(issues, fmt.Sprintf(
				"Feature '%s' contributes %.1f%% of the mean vector magnitude and may dominate similarity",
				name, contribution*100))
		}
	}

	return issues
}
