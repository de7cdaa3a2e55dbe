package voice

import (
	"math"
	"sync"
)

const (
	numMels = 128

	chromaCenterOctave = 5.0
	chromaOctaveWidth  = 2.0
)

// filterBank holds the sample-rate dependent projection matrices.
type filterBank struct {
	mel    [][]float64 // numMels x numBins
	chroma [][]float64 // NumChroma x numBins
	dct    [][]float64 // NumMFCC x numMels
}

var (
	filterMu    sync.Mutex
	filterCache = map[int]*filterBank{}
)

// filtersFor returns the cached filter bank for a sample rate. Banks are
// never mutated after construction.
func filtersFor(sampleRate int) *filterBank {
	filterMu.Lock()
	defer filterMu.Unlock()

	if fb, ok := filterCache[sampleRate]; ok {
		return fb
	}
	fb := &filterBank{
		mel:    melFilterBank(sampleRate, numMels),
		chroma: chromaFilterBank(sampleRate),
		dct:    dctMatrix(numMels, NumMFCC),
	}
	filterCache[sampleRate] = fb
	return fb
}

// hzToMel uses the Slaney scale: linear below 1 kHz, logarithmic above.
func hzToMel(hz float64) float64 {
	const (
		fSp        = 200.0 / 3
		minLogHz   = 1000.0
		minLogMel  = minLogHz / fSp
		logStepDen = 27.0
	)
	if hz < minLogHz {
		return hz / fSp
	}
	logStep := math.Log(6.4) / logStepDen
	return minLogMel + math.Log(hz/minLogHz)/logStep
}

func melToHz(mel float64) float64 {
	const (
		fSp       = 200.0 / 3
		minLogHz  = 1000.0
		minLogMel = minLogHz / fSp
	)
	if mel < minLogMel {
		return mel * fSp
	}
	logStep := math.Log(6.4) / 27.0
	return minLogHz * math.Exp(logStep*(mel-minLogMel))
}

// melFilterBank builds area-normalised triangular filters spanning 0 Hz to Nyquist.
func melFilterBank(sampleRate, nMels int) [][]float64 {
	fftFreqs := fftFrequencies(sampleRate)

	minMel := hzToMel(0)
	maxMel := hzToMel(float64(sampleRate) / 2)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = melToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	weights := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		row := make([]float64, numBins)
		lowerWidth := melF[m+1] - melF[m]
		upperWidth := melF[m+2] - melF[m+1]
		enorm := 2.0 / (melF[m+2] - melF[m])
		for k, f := range fftFreqs {
			lower := (f - melF[m]) / lowerWidth
			upper := (melF[m+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			row[k] = w * enorm
		}
		weights[m] = row
	}
	return weights
}

// chromaFilterBank maps STFT bins onto 12 pitch classes starting at C, with
// Gaussian bumps per semitone and an octave weighting centred on C5.
func chromaFilterBank(sampleRate int) [][]float64 {
	const n = float64(NumChroma)

	// bin 0 (DC) gets a placeholder 1.5 octaves below bin 1
	frqBins := make([]float64, FrameLength)
	for k := 1; k < FrameLength; k++ {
		hz := float64(k) * float64(sampleRate) / FrameLength
		frqBins[k] = n * math.Log2(hz/(440.0/16))
	}
	frqBins[0] = frqBins[1] - 1.5*n

	binWidth := make([]float64, FrameLength)
	for k := 0; k < FrameLength-1; k++ {
		binWidth[k] = math.Max(frqBins[k+1]-frqBins[k], 1)
	}
	binWidth[FrameLength-1] = 1

	half := math.Round(n / 2)
	raw := make([][]float64, NumChroma)
	for c := range raw {
		raw[c] = make([]float64, FrameLength)
		for k := range raw[c] {
			d := math.Mod(frqBins[k]-float64(c)+half+10*n, n)
			if d < 0 {
				d += n
			}
			d -= half
			x := 2 * d / binWidth[k]
			raw[c][k] = math.Exp(-0.5 * x * x)
		}
	}

	for k := 0; k < FrameLength; k++ {
		var norm float64
		for c := range raw {
			norm += raw[c][k] * raw[c][k]
		}
		norm = math.Sqrt(norm)
		octave := (frqBins[k]/n - chromaCenterOctave) / chromaOctaveWidth
		weight := math.Exp(-0.5 * octave * octave)
		for c := range raw {
			if norm > 0 {
				raw[c][k] /= norm
			}
			raw[c][k] *= weight
		}
	}

	// rotate so row 0 is C instead of A
	out := make([][]float64, NumChroma)
	for c := range out {
		out[c] = raw[(c+3)%NumChroma][:numBins]
	}
	return out
}
