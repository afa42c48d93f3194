package audio

import "strings"

// btKeywords marks device names that are usually bluetooth headsets, which
// capture through a low-bandwidth codec. Matched case-insensitively.
var btKeywords = []string{
	"bluetooth", " bt ", " bt)", " bt]",
	"airpods", "beats", "powerbeats",
	"galaxy buds", "pixel buds",
	"sony wh-", "sony wf-", "wh-1000", "wf-1000",
	"bose", "jabra", "jbl ", "sennheiser momentum",
	"plantronics", "skullcandy", "tozo", "anker soundcore",
}

// IsBluetooth guesses from the device name whether capture goes over
// bluetooth. Used to warn during device selection, never to filter.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SampleFormat is the native representation of frames a backend delivers.
type SampleFormat int

const (
	FormatS16 SampleFormat = iota
	FormatU16
	FormatF32
)

func (f SampleFormat) BytesPerSample() int {
	if f == FormatF32 {
		return 4
	}
	return 2
}

func (f SampleFormat) String() string {
	switch f {
	case FormatS16:
		return "s16"
	case FormatU16:
		return "u16"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// DataCallback receives one raw buffer per hardware callback. Frames are
// interleaved in the device's native format; see CaptureDevice.Format.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	// SampleRate is the requested rate. Backends that cannot open the device
	// at this rate fall back to the device default; the rate actually in
	// effect is reported by CaptureDevice.SampleRate.
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
	// SampleRate is the negotiated rate, which may differ from the request.
	SampleRate() uint32
	Format() SampleFormat
	Channels() uint32
}
