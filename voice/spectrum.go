package voice

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analysis parameters shared by every frame-based feature.
const (
	FrameLength = 2048
	HopLength   = 512

	numBins = FrameLength/2 + 1
)

// spectrogram holds the centred STFT of a clip: frames x bins.
type spectrogram struct {
	sampleRate int
	magnitude  [][]float64
	power      [][]float64
	freqs      []float64
}

func (s *spectrogram) frames() int { return len(s.magnitude) }

// computeSpectrogram frames the clip with zero padding of half a window on
// each side, so every clip (even one shorter than a window) yields at least
// one frame.
func computeSpectrogram(samples []float64, sampleRate int) *spectrogram {
	padded := centerPad(samples, FrameLength/2)
	nFrames := frameCount(len(samples))

	window := hannWindow(FrameLength)
	fft := fourier.NewFFT(FrameLength)
	buf := make([]float64, FrameLength)
	coeffs := make([]complex128, numBins)

	sg := &spectrogram{
		sampleRate: sampleRate,
		magnitude:  make([][]float64, nFrames),
		power:      make([][]float64, nFrames),
		freqs:      fftFrequencies(sampleRate),
	}

	for t := 0; t < nFrames; t++ {
		start := t * HopLength
		for i := range buf {
			buf[i] = padded[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)

		mag := make([]float64, numBins)
		pow := make([]float64, numBins)
		for k, c := range coeffs {
			m := cmplx.Abs(c)
			mag[k] = m
			pow[k] = m * m
		}
		sg.magnitude[t] = mag
		sg.power[t] = pow
	}
	return sg
}

func frameCount(n int) int {
	return 1 + n/HopLength
}

func centerPad(samples []float64, pad int) []float64 {
	out := make([]float64, len(samples)+2*pad)
	copy(out[pad:], samples)
	return out
}

func edgePad(samples []float64, pad int) []float64 {
	out := make([]float64, len(samples)+2*pad)
	copy(out[pad:], samples)
	if len(samples) == 0 {
		return out
	}
	first, last := samples[0], samples[len(samples)-1]
	for i := 0; i < pad; i++ {
		out[i] = first
		out[len(out)-1-i] = last
	}
	return out
}

// hannWindow returns the periodic Hann window used for spectral analysis.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func fftFrequencies(sampleRate int) []float64 {
	freqs := make([]float64, numBins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / FrameLength
	}
	return freqs
}

// powerToDB converts power values to decibels in place, clipping to topDB
// below the overall maximum.
func powerToDB(values [][]float64) {
	const (
		amin  = 1e-10
		topDB = 80.0
	)
	maxDB := math.Inf(-1)
	for _, row := range values {
		for i, v := range row {
			db := 10 * math.Log10(math.Max(amin, v))
			row[i] = db
			if db > maxDB {
				maxDB = db
			}
		}
	}
	floor := maxDB - topDB
	for _, row := range values {
		for i, v := range row {
			if v < floor {
				row[i] = floor
			}
		}
	}
}

// dctMatrix returns the first n rows of the orthonormal DCT-II basis of the given size.
func dctMatrix(size, n int) [][]float64 {
	basis := make([][]float64, n)
	scale0 := math.Sqrt(1 / float64(size))
	scale := math.Sqrt(2 / float64(size))
	for k := range basis {
		row := make([]float64, size)
		s := scale
		if k == 0 {
			s = scale0
		}
		for i := range row {
			row[i] = s * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(size)))
		}
		basis[k] = row
	}
	return basis
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}
