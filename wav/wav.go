// Package wav decodes RIFF/WAVE byte streams into mono float PCM.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const (
	formatPCM        = 0x0001
	formatIEEEFloat  = 0x0003
	formatExtensible = 0xFFFE
)

// ErrMalformed is returned for any input that is not a decodable WAV stream.
var ErrMalformed = errors.New("wav: malformed data")

// Info describes the fmt chunk of a WAV stream.
type Info struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// Audio is decoded mono PCM in [-1, 1].
type Audio struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Duration returns the clip length in seconds.
func (a *Audio) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (*Audio, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read wav file: %w", err)
	}
	return Decode(data)
}

// Decode parses a RIFF/WAVE stream and downmixes it to mono by averaging channels.
func Decode(data []byte) (*Audio, error) {
	info, payload, err := parse(data)
	if err != nil {
		return nil, err
	}

	interleaved, err := toFloat(payload, info)
	if err != nil {
		return nil, err
	}

	frames := len(interleaved) / info.Channels
	if frames == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrMalformed)
	}

	mono := make([]float64, frames)
	if info.Channels == 1 {
		copy(mono, interleaved)
	} else {
		for i := 0; i < frames; i++ {
			var sum float64
			for ch := 0; ch < info.Channels; ch++ {
				sum += interleaved[i*info.Channels+ch]
			}
			mono[i] = sum / float64(info.Channels)
		}
	}

	return &Audio{Samples: mono, SampleRate: info.SampleRate, Channels: info.Channels}, nil
}

func parse(data []byte) (Info, []byte, error) {
	if len(data) < 12 {
		return Info{}, nil, fmt.Errorf("%w: too short for a RIFF header", ErrMalformed)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Info{}, nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrMalformed)
	}

	var info Info
	foundFmt := false
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(data) {
				return Info{}, nil, fmt.Errorf("%w: truncated fmt chunk", ErrMalformed)
			}
			fmtData := data[body:]
			info.Format = binary.LittleEndian.Uint16(fmtData[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			if info.Format == formatExtensible && chunkSize >= 40 && body+26 <= len(data) {
				// first two bytes of the sub-format GUID carry the actual tag
				info.Format = binary.LittleEndian.Uint16(fmtData[24:26])
			}
			foundFmt = true
		case "data":
			if !foundFmt {
				return Info{}, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformed)
			}
			if err := validate(info); err != nil {
				return Info{}, nil, err
			}
			end := body + chunkSize
			if end > len(data) || chunkSize == 0 {
				// streaming writers leave the size unset; take what is there
				end = len(data)
			}
			return info, data[body:end], nil
		}

		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Info{}, nil, fmt.Errorf("%w: missing data chunk", ErrMalformed)
}

func validate(info Info) error {
	if info.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrMalformed, info.Channels)
	}
	if info.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrMalformed, info.SampleRate)
	}
	switch info.Format {
	case formatPCM:
		switch info.BitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case formatIEEEFloat:
		switch info.BitsPerSample {
		case 32, 64:
			return nil
		}
	default:
		return fmt.Errorf("%w: unsupported format tag 0x%04x", ErrMalformed, info.Format)
	}
	return fmt.Errorf("%w: unsupported bit depth %d", ErrMalformed, info.BitsPerSample)
}

func toFloat(payload []byte, info Info) ([]float64, error) {
	width := info.BitsPerSample / 8
	count := len(payload) / width
	count -= count % info.Channels
	if count <= 0 {
		return nil, fmt.Errorf("%w: empty data chunk", ErrMalformed)
	}

	out := make([]float64, count)
	for i := 0; i < count; i++ {
		b := payload[i*width : (i+1)*width]
		switch {
		case info.Format == formatIEEEFloat && width == 4:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case info.Format == formatIEEEFloat && width == 8:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		case width == 1:
			// 8-bit PCM is unsigned
			out[i] = (float64(b[0]) - 128) / 128
		case width == 2:
			out[i] = float64(int16(binary.LittleEndian.Uint16(b))) / 32768
		case width == 3:
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			out[i] = float64(v) / 8388608
		case width == 4:
			out[i] = float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
		}
	}
	return out, nil
}

// Encode16 renders mono samples as a 16-bit PCM WAV stream. Values outside
// [-1, 1] are clipped.
func Encode16(samples []float64, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(int16(math.Round(s*32767))))
	}
	return buf
}
