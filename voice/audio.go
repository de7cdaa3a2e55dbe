package voice

import (
	"fmt"
	"math"

	"voice-analyze/wav"
)

// AudioSample is a decoded mono clip ready for feature extraction.
type AudioSample struct {
	Samples    []float64
	SampleRate int
	Duration   float64
	SNRDb      float64 // Signal-to-noise ratio in dB
}

// Decoder turns raw uploaded bytes into an AudioSample.
type Decoder interface {
	Decode(data []byte) (*AudioSample, error)
}

// WAVDecoder decodes RIFF/WAVE uploads, optionally resampling to a fixed rate.
type WAVDecoder struct {
	wav *wav.Decoder
}

// NewWAVDecoder returns a decoder that resamples to targetRate; zero keeps
// each clip's native rate.
func NewWAVDecoder(targetRate int) *WAVDecoder {
	return &WAVDecoder{wav: wav.NewDecoder(targetRate)}
}

// Decode implements Decoder. Every failure wraps ErrAudioDecode.
func (d *WAVDecoder) Decode(data []byte) (*AudioSample, error) {
	audio, err := d.wav.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioDecode, err)
	}
	return &AudioSample{
		Samples:    audio.Samples,
		SampleRate: audio.SampleRate,
		Duration:   audio.Duration(),
		SNRDb:      EstimateSNR(audio.Samples, audio.SampleRate),
	}, nil
}

// EstimateSNR compares the mean power of the whole clip with the noise floor
// measured over its first tenth (at least 512 samples), in dB.
func EstimateSNR(samples []float64, sampleRate int) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	noiseLength := len(samples) / 10
	if noiseLength < 512 {
		noiseLength = 512
	}
	if noiseLength > len(samples) {
		noiseLength = len(samples)
	}

	noisePower := noiseFloor(samples[:noiseLength], sampleRate)
	noisePower = noisePower * noisePower

	var signalPower float64
	for _, s := range samples {
		signalPower += s * s
	}
	signalPower /= float64(len(samples))

	if noisePower == 0 {
		return 100.0
	}

	snr := signalPower / noisePower
	if snr <= 0 {
		return -100.0
	}
	return 10.0 * math.Log10(snr)
}

// noiseFloor is the lowest RMS over 10 ms windows.
func noiseFloor(samples []float64, sampleRate int) float64 {
	window := sampleRate / 100
	if window <= 0 || window > len(samples) {
		window = len(samples)
	}

	floor := math.Inf(1)
	for start := 0; start+window <= len(samples); start += window {
		var sum float64
		for _, s := range samples[start : start+window] {
			sum += s * s
		}
		rms := math.Sqrt(sum / float64(window))
		if rms < floor {
			floor = rms
		}
	}
	if math.IsInf(floor, 1) {
		return 0
	}
	return floor
}
