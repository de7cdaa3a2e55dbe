package wav

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestDecodeRoundTrip16Bit(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 1600)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/16000)
	}

	audio, err := Decode(Encode16(samples, 16000))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if audio.SampleRate != 16000 {
		t.Fatalf("expected 16000 Hz, got %d", audio.SampleRate)
	}
	if len(audio.Samples) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(audio.Samples))
	}
	for i := range samples {
		if math.Abs(audio.Samples[i]-samples[i]) > 1.0/16384 {
			t.Fatalf("sample %d differs: %f vs %f", i, audio.Samples[i], samples[i])
		}
	}
	if d := audio.Duration(); math.Abs(d-0.1) > 1e-9 {
		t.Fatalf("expected 0.1s duration, got %f", d)
	}
}

func TestDecodeDownmixesStereo(t *testing.T) {
	t.Parallel()

	left := []int16{16384, 16384, -16384}
	right := []int16{0, 16384, 16384}
	payload := make([]byte, 0, len(left)*4)
	for i := range left {
		payload = binary.LittleEndian.AppendUint16(payload, uint16(left[i]))
		payload = binary.LittleEndian.AppendUint16(payload, uint16(right[i]))
	}

	audio, err := Decode(buildWAV(formatPCM, 2, 8000, 16, payload))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	want := []float64{0.25, 0.5, 0}
	for i, w := range want {
		if math.Abs(audio.Samples[i]-w) > 1e-9 {
			t.Fatalf("frame %d: expected %f, got %f", i, w, audio.Samples[i])
		}
	}
	if audio.Channels != 2 {
		t.Fatalf("expected source channel count 2, got %d", audio.Channels)
	}
}

func TestDecodeFloatAnd24Bit(t *testing.T) {
	t.Parallel()

	floatPayload := binary.LittleEndian.AppendUint32(nil, math.Float32bits(-0.75))
	audio, err := Decode(buildWAV(formatIEEEFloat, 1, 22050, 32, floatPayload))
	if err != nil {
		t.Fatalf("float decode: %v", err)
	}
	if math.Abs(audio.Samples[0]+0.75) > 1e-7 {
		t.Fatalf("expected -0.75, got %f", audio.Samples[0])
	}

	// 0x400000 is half of full scale in 24-bit
	audio, err = Decode(buildWAV(formatPCM, 1, 22050, 24, []byte{0x00, 0x00, 0x40}))
	if err != nil {
		t.Fatalf("24-bit decode: %v", err)
	}
	if math.Abs(audio.Samples[0]-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %f", audio.Samples[0])
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"empty":        nil,
		"not riff":     []byte("this is definitely not a wav file"),
		"no data":      buildWAV(formatPCM, 1, 16000, 16, nil)[:36],
		"empty data":   buildWAV(formatPCM, 1, 16000, 16, nil),
		"bad format":   buildWAV(0x0055, 1, 16000, 16, []byte{0, 0}),
		"zero rate":    buildWAV(formatPCM, 1, 0, 16, []byte{0, 0}),
		"odd bitdepth": buildWAV(formatPCM, 1, 16000, 12, []byte{0, 0}),
	}
	for name, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestDecoderKeepsNativeRate(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 800)
	audio, err := NewDecoder(16000).Decode(Encode16(samples, 16000))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if audio.SampleRate != 16000 || len(audio.Samples) != len(samples) {
		t.Fatalf("unexpected passthrough result: rate=%d len=%d", audio.SampleRate, len(audio.Samples))
	}
}

func TestResampleEqualRatesCopies(t *testing.T) {
	t.Parallel()

	in := []float64{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample returned error: %v", err)
	}
	out[0] = 9
	if in[0] != 0.1 {
		t.Fatal("Resample must not alias its input")
	}
	if _, err := Resample(in, 0, 16000); err == nil {
		t.Fatal("expected error for zero input rate")
	}
}

func buildWAV(format uint16, channels, rate, bits int, payload []byte) []byte {
	buf := make([]byte, 0, 44+len(payload))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(payload)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, format)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rate*channels*bits/8))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels*bits/8))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bits))
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf
}
