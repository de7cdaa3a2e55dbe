package voice

// Feature Extraction
//
// A clip is summarised by 129 values computed over a centred short-time
// Fourier transform (2048-sample Hann window, hop of 512):
//
//   zero-crossing rate, spectral centroid / rolloff / bandwidth (frame means),
//   7-band spectral contrast (mean and std), 12-bin chroma (mean and std),
//   RMS, mel power spectrogram mean and std, spectral flatness,
//   first-order spectral polynomial (slope, intercept), 40 MFCCs
//   (mean and std), and the total energy of the waveform.
//
// All statistics use the population standard deviation. Every division is
// guarded so silence yields finite values.

import (
	"fmt"
	"math"
	"sort"
)

const (
	rolloffPercent   = 0.85
	contrastFMin     = 200.0
	contrastBands    = NumContrastBands - 1
	contrastQuantile = 0.02
	flatnessAmin     = 1e-10
	zeroThreshold    = 1e-10
)

// FeatureVector is the fixed-layout summary of one clip. See FeatureNames.
type FeatureVector [FeatureCount]float64

// Slice returns the vector as a freshly allocated slice.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}

// ExtractFeatureVector computes the feature vector of a mono clip. It is pure
// and deterministic: the same samples always produce the same vector.
func ExtractFeatureVector(samples []float64, sampleRate int) (FeatureVector, error) {
	var vec FeatureVector
	if len(samples) == 0 {
		return vec, fmt.Errorf("%w: clip has no samples", ErrAudioDecode)
	}
	if sampleRate <= 0 {
		return vec, fmt.Errorf("%w: invalid sample rate %d", ErrAudioDecode, sampleRate)
	}

	sg := computeSpectrogram(samples, sampleRate)
	filters := filtersFor(sampleRate)

	vec[OffsetZeroCrossing] = zeroCrossingRate(samples)

	centroids := spectralCentroids(sg)
	vec[OffsetCentroid], _ = meanStd(centroids)
	vec[OffsetRolloff], _ = meanStd(spectralRolloffs(sg))
	vec[OffsetBandwidth], _ = meanStd(spectralBandwidths(sg, centroids))

	contrast := spectralContrast(sg)
	for b := 0; b < NumContrastBands; b++ {
		vec[OffsetContrastMean+b], vec[OffsetContrastStd+b] = meanStd(contrast[b])
	}

	chroma := chromagram(sg, filters.chroma)
	for c := 0; c < NumChroma; c++ {
		vec[OffsetChromaMean+c], vec[OffsetChromaStd+c] = meanStd(chroma[c])
	}

	vec[OffsetRMS], _ = meanStd(frameRMS(samples))

	mel := melSpectrogram(sg, filters.mel)
	flat := make([]float64, 0, numMels*sg.frames())
	for _, row := range mel {
		flat = append(flat, row...)
	}
	vec[OffsetMelMean], vec[OffsetMelStd] = meanStd(flat)

	vec[OffsetFlatness], _ = meanStd(spectralFlatness(sg))

	slopes, intercepts := polyFit(sg)
	vec[OffsetPoly], _ = meanStd(slopes)
	vec[OffsetPoly+1], _ = meanStd(intercepts)

	mfcc := mfccs(mel, filters.dct)
	for c := 0; c < NumMFCC; c++ {
		vec[OffsetMFCCMean+c], vec[OffsetMFCCStd+c] = meanStd(mfcc[c])
	}

	var energy float64
	for _, s := range samples {
		energy += s * s
	}
	vec[OffsetEnergy] = energy

	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vec[i] = 0
		}
	}
	return vec, nil
}

// zeroCrossingRate is the mean over edge-padded frames of the fraction of
// samples whose sign differs from the previous one. Near-zero samples count
// as positive.
func zeroCrossingRate(samples []float64) float64 {
	padded := edgePad(samples, FrameLength/2)
	nFrames := frameCount(len(samples))

	negative := make([]bool, len(padded))
	for i, v := range padded {
		negative[i] = math.Abs(v) > zeroThreshold && math.Signbit(v)
	}

	var total float64
	for t := 0; t < nFrames; t++ {
		start := t * HopLength
		crossings := 0
		for i := start + 1; i < start+FrameLength; i++ {
			if negative[i] != negative[i-1] {
				crossings++
			}
		}
		total += float64(crossings) / FrameLength
	}
	return total / float64(nFrames)
}

func frameRMS(samples []float64) []float64 {
	padded := centerPad(samples, FrameLength/2)
	nFrames := frameCount(len(samples))
	out := make([]float64, nFrames)
	for t := range out {
		start := t * HopLength
		var sum float64
		for _, v := range padded[start : start+FrameLength] {
			sum += v * v
		}
		out[t] = math.Sqrt(sum / FrameLength)
	}
	return out
}

func spectralCentroids(sg *spectrogram) []float64 {
	out := make([]float64, sg.frames())
	for t, mag := range sg.magnitude {
		var weighted, total float64
		for k, m := range mag {
			weighted += sg.freqs[k] * m
			total += m
		}
		if total > 0 {
			out[t] = weighted / total
		}
	}
	return out
}

func spectralBandwidths(sg *spectrogram, centroids []float64) []float64 {
	out := make([]float64, sg.frames())
	for t, mag := range sg.magnitude {
		var total float64
		for _, m := range mag {
			total += m
		}
		if total <= 0 {
			continue
		}
		var acc float64
		for k, m := range mag {
			d := sg.freqs[k] - centroids[t]
			acc += (m / total) * d * d
		}
		out[t] = math.Sqrt(acc)
	}
	return out
}

// spectralRolloffs reports, per frame, the lowest frequency below which
// rolloffPercent of the magnitude is concentrated.
func spectralRolloffs(sg *spectrogram) []float64 {
	out := make([]float64, sg.frames())
	for t, mag := range sg.magnitude {
		var total float64
		for _, m := range mag {
			total += m
		}
		threshold := rolloffPercent * total
		var cum float64
		for k, m := range mag {
			cum += m
			if cum >= threshold {
				out[t] = sg.freqs[k]
				break
			}
		}
	}
	return out
}

// spectralContrast returns, per octave band, the dB difference between the
// spectral peaks and valleys of each frame.
func spectralContrast(sg *spectrogram) [][]float64 {
	nFrames := sg.frames()

	edges := make([]float64, contrastBands+2)
	for i := 1; i < len(edges); i++ {
		edges[i] = contrastFMin * math.Pow(2, float64(i-1))
	}

	peaks := make([][]float64, NumContrastBands)
	valleys := make([][]float64, NumContrastBands)
	for k := 0; k < NumContrastBands; k++ {
		peaks[k] = make([]float64, nFrames)
		valleys[k] = make([]float64, nFrames)

		lo, hi := -1, -1
		for i, f := range sg.freqs {
			if f >= edges[k] && f <= edges[k+1] {
				if lo < 0 {
					lo = i
				}
				hi = i
			}
		}
		if lo < 0 {
			// band lies above Nyquist
			continue
		}
		if k > 0 && lo > 0 {
			lo--
		}
		if k == contrastBands {
			hi = numBins - 1
		}
		bandSize := hi - lo + 1
		subHi := hi
		if k < contrastBands {
			subHi--
		}
		if subHi < lo {
			continue
		}

		take := int(math.RoundToEven(contrastQuantile * float64(bandSize)))
		if take < 1 {
			take = 1
		}
		sub := make([]float64, subHi-lo+1)
		if take > len(sub) {
			take = len(sub)
		}

		for t, mag := range sg.magnitude {
			copy(sub, mag[lo:subHi+1])
			sort.Float64s(sub)
			var valley, peak float64
			for i := 0; i < take; i++ {
				valley += sub[i]
				peak += sub[len(sub)-1-i]
			}
			valleys[k][t] = valley / float64(take)
			peaks[k][t] = peak / float64(take)
		}
	}

	powerToDB(peaks)
	powerToDB(valleys)

	contrast := make([][]float64, NumContrastBands)
	for k := range contrast {
		contrast[k] = make([]float64, nFrames)
		for t := range contrast[k] {
			contrast[k][t] = peaks[k][t] - valleys[k][t]
		}
	}
	return contrast
}

// chromagram projects the power spectrum onto pitch classes and scales each
// frame so its strongest class is 1. Silent frames stay at zero.
func chromagram(sg *spectrogram, bank [][]float64) [][]float64 {
	nFrames := sg.frames()
	out := make([][]float64, NumChroma)
	for c := range out {
		out[c] = make([]float64, nFrames)
	}

	for t, pow := range sg.power {
		peak := 0.0
		for c, weights := range bank {
			var acc float64
			for k, w := range weights {
				acc += w * pow[k]
			}
			out[c][t] = acc
			if math.Abs(acc) > peak {
				peak = math.Abs(acc)
			}
		}
		if peak > 0 {
			for c := range out {
				out[c][t] /= peak
			}
		}
	}
	return out
}

func melSpectrogram(sg *spectrogram, bank [][]float64) [][]float64 {
	nFrames := sg.frames()
	mel := make([][]float64, len(bank))
	for m, weights := range bank {
		row := make([]float64, nFrames)
		for t, pow := range sg.power {
			var acc float64
			for k, w := range weights {
				if w != 0 {
					acc += w * pow[k]
				}
			}
			row[t] = acc
		}
		mel[m] = row
	}
	return mel
}

// spectralFlatness is the ratio of geometric to arithmetic mean of the
// thresholded power spectrum, per frame.
func spectralFlatness(sg *spectrogram) []float64 {
	out := make([]float64, sg.frames())
	for t, pow := range sg.power {
		var logSum, sum float64
		for _, p := range pow {
			v := math.Max(flatnessAmin, p)
			logSum += math.Log(v)
			sum += v
		}
		n := float64(len(pow))
		out[t] = math.Exp(logSum/n) / (sum / n)
	}
	return out
}

// polyFit fits magnitude = slope*freq + intercept per frame by least squares.
func polyFit(sg *spectrogram) ([]float64, []float64) {
	n := float64(numBins)
	var sumF, sumFF float64
	for _, f := range sg.freqs {
		sumF += f
		sumFF += f * f
	}
	meanF := sumF / n
	varF := sumFF/n - meanF*meanF

	slopes := make([]float64, sg.frames())
	intercepts := make([]float64, sg.frames())
	for t, mag := range sg.magnitude {
		var sumM, sumFM float64
		for k, m := range mag {
			sumM += m
			sumFM += sg.freqs[k] * m
		}
		meanM := sumM / n
		if varF > 0 {
			slopes[t] = (sumFM/n - meanF*meanM) / varF
		}
		intercepts[t] = meanM - slopes[t]*meanF
	}
	return slopes, intercepts
}

// mfccs returns NumMFCC rows of cepstral coefficients per frame. The mel
// input is not modified.
func mfccs(mel [][]float64, dct [][]float64) [][]float64 {
	nFrames := 0
	if len(mel) > 0 {
		nFrames = len(mel[0])
	}

	logMel := make([][]float64, len(mel))
	for m, row := range mel {
		logMel[m] = append([]float64(nil), row...)
	}
	powerToDB(logMel)

	out := make([][]float64, NumMFCC)
	for c := range out {
		out[c] = make([]float64, nFrames)
		for t := 0; t < nFrames; t++ {
			var acc float64
			for m, w := range dct[c] {
				acc += w * logMel[m][t]
			}
			out[c][t] = acc
		}
	}
	return out
}
