package voice

import "fmt"

// Feature layout. The offsets index into a FeatureVector.
const (
	NumContrastBands = 7
	NumChroma        = 12
	NumPoly          = 2
	NumMFCC          = 40

	OffsetZeroCrossing = 0
	OffsetCentroid     = 1
	OffsetRolloff      = 2
	OffsetBandwidth    = 3
	OffsetContrastMean = 4
	OffsetContrastStd  = OffsetContrastMean + NumContrastBands
	OffsetChromaMean   = OffsetContrastStd + NumContrastBands
	OffsetChromaStd    = OffsetChromaMean + NumChroma
	OffsetRMS          = OffsetChromaStd + NumChroma
	OffsetMelMean      = OffsetRMS + 1
	OffsetMelStd       = OffsetMelMean + 1
	OffsetFlatness     = OffsetMelStd + 1
	OffsetPoly         = OffsetFlatness + 1
	OffsetMFCCMean     = OffsetPoly + NumPoly
	OffsetMFCCStd      = OffsetMFCCMean + NumMFCC
	OffsetEnergy       = OffsetMFCCStd + NumMFCC

	FeatureCount = OffsetEnergy + 1
)

var featureNames = buildFeatureNames()

func buildFeatureNames() []string {
	names := make([]string, 0, FeatureCount)
	names = append(names, "zero_crossing", "centroid_mean", "rolloff_mean", "bandwidth_mean")
	for i := 0; i < NumContrastBands; i++ {
		names = append(names, fmt.Sprintf("contrast_mean_%d", i))
	}
	for i := 0; i < NumContrastBands; i++ {
		names = append(names, fmt.Sprintf("contrast_std_%d", i))
	}
	for i := 0; i < NumChroma; i++ {
		names = append(names, fmt.Sprintf("chroma_stft_mean_%d", i))
	}
	for i := 0; i < NumChroma; i++ {
		names = append(names, fmt.Sprintf("chroma_stft_std_%d", i))
	}
	names = append(names, "rms_mean", "melspectrogram_mean", "melspectrogram_std", "flatness_mean")
	for i := 0; i < NumPoly; i++ {
		names = append(names, fmt.Sprintf("poly_mean_%d", i))
	}
	for i := 0; i < NumMFCC; i++ {
		names = append(names, fmt.Sprintf("mfcc_mean_%d", i))
	}
	for i := 0; i < NumMFCC; i++ {
		names = append(names, fmt.Sprintf("mfcc_std_%d", i))
	}
	return append(names, "energy")
}

// FeatureNames returns the column names of a FeatureVector in order.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// FeatureIndex resolves a column name to its position.
func FeatureIndex(name string) (int, bool) {
	for i, n := range featureNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}
