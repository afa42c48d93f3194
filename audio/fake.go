package audio

import (
	"errors"
	"sync"
	"time"
)

// FakeContext is a scripted capture backend for tests: it plays back a fixed
// set of raw callback buffers and honors the same negotiation rules as the
// real backends (fall back to NativeRate when the requested rate is not
// supported).
type FakeContext struct {
	DeviceList []DeviceInfo
	DevicesErr error
	CaptureErr error
	StartErr   error

	// NativeRate is granted when SupportedRate doesn't match the request
	// (or always, when SupportedRate is zero).
	NativeRate    uint32
	SupportedRate uint32

	FrameFormat   SampleFormat
	FrameChannels uint32
	Frames        [][]byte
	Interval      time.Duration

	mu       sync.Mutex
	captures []*FakeCapture
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return f.DeviceList, f.DevicesErr
}

func (f *FakeContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if f.CaptureErr != nil {
		return nil, f.CaptureErr
	}
	rate := config.SampleRate
	if f.SupportedRate == 0 || f.SupportedRate != config.SampleRate {
		rate = f.NativeRate
	}
	if rate == 0 {
		return nil, errors.New("fake: no usable sample rate")
	}
	interval := f.Interval
	if interval == 0 {
		interval = time.Millisecond
	}
	c := &FakeCapture{
		device:   device,
		rate:     rate,
		format:   f.FrameFormat,
		channels: max(f.FrameChannels, 1),
		frames:   f.Frames,
		interval: interval,
		startErr: f.StartErr,
	}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Close() {}

// Captures returns every capture device handed out so far.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	device   *DeviceInfo
	rate     uint32
	format   SampleFormat
	channels uint32
	frames   [][]byte
	interval time.Duration
	startErr error

	mu     sync.Mutex
	cb     DataCallback
	stopCh chan struct{}
	done   chan struct{}
	closed bool
}

func (c *FakeCapture) Start() error {
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stopCh, c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for _, frame := range c.frames {
			select {
			case <-stop:
				return
			case <-time.After(c.interval):
			}
			c.mu.Lock()
			cb := c.cb
			c.mu.Unlock()
			if cb != nil {
				cb(frame, uint32(len(frame)/(c.format.BytesPerSample()*int(c.channels))))
			}
		}
		<-stop
	}()
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	stop, done := c.stopCh, c.done
	c.mu.Unlock()
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done
}

func (c *FakeCapture) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *FakeCapture) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *FakeCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "fake default"
}

func (c *FakeCapture) SampleRate() uint32 { return c.rate }

func (c *FakeCapture) Format() SampleFormat { return c.format }

func (c *FakeCapture) Channels() uint32 { return c.channels }
