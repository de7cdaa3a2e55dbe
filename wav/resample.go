package wav

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one rate to another. Equal rates return
// a copy of the input.
func Resample(samples []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	config := &resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	resampler, err := resampling.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := resampler.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return out, nil
}

// Decoder turns uploaded WAV bytes into mono PCM at a fixed target rate.
// A zero TargetRate keeps the native rate of each clip.
type Decoder struct {
	TargetRate int
}

// NewDecoder returns a Decoder that resamples to targetRate.
func NewDecoder(targetRate int) *Decoder {
	return &Decoder{TargetRate: targetRate}
}

// Decode parses data and, when needed, resamples it to the target rate.
func (d *Decoder) Decode(data []byte) (*Audio, error) {
	audio, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if d == nil || d.TargetRate <= 0 || audio.SampleRate == d.TargetRate {
		return audio, nil
	}

	samples, err := Resample(audio.Samples, audio.SampleRate, d.TargetRate)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: clip too short to resample", ErrMalformed)
	}
	return &Audio{Samples: samples, SampleRate: d.TargetRate, Channels: audio.Channels}, nil
}
