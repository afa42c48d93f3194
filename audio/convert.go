package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ToMonoS16 converts one callback buffer of interleaved frames into mono
// signed 16-bit samples. Only channel 0 of each frame is kept; values are
// normalized, clamped to [-1, 1] and scaled to the int16 range.
func ToMonoS16(data []byte, format SampleFormat, channels uint32) ([]int16, error) {
	if channels == 0 {
		return nil, fmt.Errorf("invalid channel count 0")
	}
	bps := format.BytesPerSample()
	frameBytes := bps * int(channels)
	if frameBytes == 0 || len(data) < frameBytes {
		return nil, nil
	}
	n := len(data) / frameBytes

	out := make([]int16, n)
	for i := 0; i < n; i++ {
		off := i * frameBytes
		var v float64
		switch format {
		case FormatF32:
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
		case FormatS16:
			v = float64(int16(binary.LittleEndian.Uint16(data[off:]))) / 32768.0
		case FormatU16:
			v = (float64(binary.LittleEndian.Uint16(data[off:])) - 32768.0) / 32768.0
		default:
			return nil, fmt.Errorf("unsupported sample format: %v", format)
		}
		out[i] = int16(math.Round(clamp(v) * 32767.0))
	}
	return out, nil
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
