// Package recorder owns the single active capture session: it bridges the
// callback-driven audio backend onto a bounded chunk channel and enforces the
// one-recording-at-a-time invariant.
package recorder

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"murmur/audio"
	"murmur/errs"
)

const (
	chunkBuffer  = 32
	readyTimeout = 3 * time.Second
)

type Request struct {
	SampleRate  uint32
	InputDevice string // empty means system default
}

type Service struct {
	ctx audio.Context

	// readyTimeout bounds the wait for the capture bridge's readiness
	// signal. Tests shorten it.
	readyTimeout time.Duration

	mu     sync.Mutex
	active *activeRecorder

	sessionMu sync.Mutex
	session   *Task
}

type activeRecorder struct {
	stop      *atomic.Bool
	done      chan struct{}
	startedAt time.Time
	chunks    <-chan []int16
	taken     bool
	rate      uint32
}

func New(ctx audio.Context) *Service {
	return &Service{ctx: ctx, readyTimeout: readyTimeout}
}

// Start spawns the capture bridge and waits for its readiness signal. It
// returns the negotiated sample rate, which may differ from the requested one
// when the device cannot provide it.
func (s *Service) Start(req Request) (uint32, error) {
	if req.SampleRate == 0 {
		return 0, errs.Validationf("sample rate must be positive")
	}

	stop := &atomic.Bool{}
	done := make(chan struct{})
	chunks := make(chan []int16, chunkBuffer)
	active := &activeRecorder{
		stop:      stop,
		done:      done,
		startedAt: time.Now(),
		chunks:    chunks,
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return 0, errs.RecorderBusy()
	}
	s.active = active
	s.mu.Unlock()

	ready := make(chan readyMsg, 1)
	go func() {
		defer close(done)
		s.captureLoop(req, ready, chunks, stop)
		close(chunks)
	}()

	select {
	case msg := <-ready:
		if msg.err != nil {
			stop.Store(true)
			s.clearActive(active)
			return 0, msg.err
		}
		active.rate = msg.rate
		return msg.rate, nil
	case <-time.After(s.readyTimeout):
		stop.Store(true)
		s.clearActive(active)
		return 0, errs.AudioInit(errors.New("audio capture did not become ready in time"))
	}
}

// TakeChunks hands out the receiving end of the chunk channel exactly once.
func (s *Service) TakeChunks() <-chan []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.taken {
		return nil
	}
	s.active.taken = true
	return s.active.chunks
}

// Stop flips the cancellation flag, waits for the bridge to exit, and returns
// the elapsed recording duration.
func (s *Service) Stop() (time.Duration, error) {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active == nil {
		return 0, errs.RecorderNotRunning()
	}
	active.stop.Store(true)
	<-active.done
	return time.Since(active.startedAt), nil
}

func (s *Service) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// AttachSession stores the in-flight streaming task so a later Stop call can
// join it. A second attach while one is outstanding is an error.
func (s *Service) AttachSession(t *Task) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.session != nil {
		return errs.New(errs.CodeInternal, "session already running")
	}
	s.session = t
	return nil
}

func (s *Service) TakeSession() *Task {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	t := s.session
	s.session = nil
	return t
}

func (s *Service) clearActive(expect *activeRecorder) {
	s.mu.Lock()
	if s.active == expect {
		s.active = nil
	}
	s.mu.Unlock()
}
