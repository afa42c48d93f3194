package recorder

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"murmur/audio"
	"murmur/errs"
	"murmur/log"
)

// stopPollInterval bounds stop latency: the bridge checks the cancellation
// flag between deliveries at this cadence, independent of callback timing.
const stopPollInterval = 200 * time.Millisecond

const relayBuffer = 64

type readyMsg struct {
	rate uint32
	err  error
}

// captureLoop hosts the blocking audio backend for one session. It selects a
// device, opens the stream, reports readiness, and relays converted chunks
// onto out until the stop flag flips. Every failure before readiness is
// delivered through ready so Start never reports success on a dead stream.
func (s *Service) captureLoop(req Request, ready chan<- readyMsg, out chan<- []int16, stop *atomic.Bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("capture bridge panic: %v", r)
			select {
			case ready <- readyMsg{err: errs.AudioInit(fmt.Errorf("capture bridge panic: %v", r))}:
			default:
			}
		}
	}()

	dev, err := s.openCapture(req)
	if err != nil {
		ready <- readyMsg{err: err}
		return
	}
	defer dev.Close()

	format, channels := dev.Format(), dev.Channels()
	switch format {
	case audio.FormatS16, audio.FormatU16, audio.FormatF32:
	default:
		ready <- readyMsg{err: errs.AudioInit(fmt.Errorf("unsupported sample format: %v", format))}
		return
	}

	relay := make(chan []int16, relayBuffer)
	dev.SetCallback(func(data []byte, frameCount uint32) {
		chunk, err := audio.ToMonoS16(data, format, channels)
		if err != nil || len(chunk) == 0 {
			return
		}
		// Never block the hardware callback thread.
		select {
		case relay <- chunk:
		default:
		}
	})

	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		ready <- readyMsg{err: errs.AudioInit(err)}
		return
	}

	rate := dev.SampleRate()
	if rate != req.SampleRate {
		log.Warnf("requested %d Hz, device granted %d Hz", req.SampleRate, rate)
	}
	log.Debugf("recording from %q at %d Hz (%v)", dev.DeviceName(), rate, format)
	ready <- readyMsg{rate: rate}

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	var totalSamples uint64
	for !stop.Load() {
		select {
		case chunk := <-relay:
			totalSamples += uint64(len(chunk))
			select {
			case out <- chunk:
			default:
				// Consumer is behind; drop rather than block or buffer.
				log.Debugf("chunk channel full, dropped %d samples", len(chunk))
			}
		case <-ticker.C:
		}
	}

	dev.Stop()
	dev.ClearCallback()

	// Flush chunks buffered between the last delivery and the stop flag.
	for flushing := true; flushing; {
		select {
		case chunk := <-relay:
			totalSamples += uint64(len(chunk))
			select {
			case out <- chunk:
			default:
				flushing = false
			}
		default:
			flushing = false
		}
	}

	if totalSamples > 0 {
		ms := float64(totalSamples) / float64(rate) * 1000
		log.Debugf("captured %d samples (~%.1f ms)", totalSamples, ms)
	} else {
		log.Info("no samples captured during recording")
	}
}

func (s *Service) openCapture(req Request) (audio.CaptureDevice, error) {
	var selected *audio.DeviceInfo
	if name := strings.TrimSpace(req.InputDevice); name != "" {
		devices, err := s.ctx.Devices()
		if err != nil {
			return nil, errs.AudioDevice(err)
		}
		for i := range devices {
			if devices[i].Name == name {
				selected = &devices[i]
				break
			}
		}
		if selected == nil {
			log.Warnf("input device %q not found, using system default", name)
		}
	}

	dev, err := s.ctx.NewCapture(selected, audio.CaptureConfig{
		SampleRate: req.SampleRate,
		Channels:   1,
	})
	if err != nil {
		return nil, errs.AudioDevice(err)
	}
	return dev, nil
}
