package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/errs"
	"murmur/hotkey"
	"murmur/realtime"
	"murmur/recorder"
	"murmur/settings"
)

// drain consumes every chunk so the capture bridge never blocks.
func drain(chunks <-chan []int16) int {
	n := 0
	for range chunks {
		n++
	}
	return n
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	ctx := &audio.FakeContext{
		SupportedRate: settings.DefaultSampleRate,
		FrameFormat:   audio.FormatS16,
		FrameChannels: 1,
		Frames:        [][]byte{{0x10, 0x00}, {0xF0, 0xFF}},
	}
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	a := newApp(recorder.New(ctx), store, "sk-test")
	a.stream = func(_ context.Context, _ realtime.Config, chunks <-chan []int16) (string, error) {
		drain(chunks)
		return "hello world", nil
	}
	a.apply = func(text string, autoPaste bool) (clipboard.Outcome, error) {
		if autoPaste {
			return clipboard.OutcomePasted, nil
		}
		return clipboard.OutcomeCopied, nil
	}
	return a
}

func TestStartSessionRequiresAPIKey(t *testing.T) {
	a := newTestApp(t)
	a.apiKey = "   "
	if err := a.startSession(); !errs.Has(err, errs.CodeMissingAPIKey) {
		t.Errorf("err = %v, want MISSING_API_KEY", err)
	}
}

func TestSessionHappyPath(t *testing.T) {
	a := newTestApp(t)
	if err := a.startSession(); err != nil {
		t.Fatalf("startSession: %v", err)
	}
	got, err := a.stopSession(context.Background())
	if err != nil {
		t.Fatalf("stopSession: %v", err)
	}
	if got.Text != "hello world" {
		t.Errorf("text = %q, want %q", got.Text, "hello world")
	}
	if !got.Pasted {
		t.Error("transcript should have been pasted with auto-paste on")
	}
	if got.Duration <= 0 {
		t.Errorf("duration = %v, want > 0", got.Duration)
	}
}

func TestSecondStartIsBusy(t *testing.T) {
	a := newTestApp(t)
	if err := a.startSession(); err != nil {
		t.Fatalf("startSession: %v", err)
	}
	if err := a.startSession(); !errs.Has(err, errs.CodeRecorderBusy) {
		t.Errorf("second start err = %v, want RECORDER_BUSY", err)
	}
	if _, err := a.stopSession(context.Background()); err != nil {
		t.Fatalf("stopSession after busy start: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.stopSession(context.Background()); !errs.Has(err, errs.CodeRecorderNotRunning) {
		t.Errorf("err = %v, want RECORDER_NOT_RUNNING", err)
	}
}

func TestModelResetAfterRejection(t *testing.T) {
	a := newTestApp(t)
	st := a.store.Get()
	st.Model = "gpt-realtime-huge"
	if err := a.store.Update(st); err != nil {
		t.Fatal(err)
	}
	a.stream = func(_ context.Context, _ realtime.Config, chunks <-chan []int16) (string, error) {
		drain(chunks)
		return "", errs.Realtime("the model `gpt-realtime-huge` is not supported")
	}

	if err := a.startSession(); err != nil {
		t.Fatal(err)
	}
	_, err := a.stopSession(context.Background())
	if err == nil {
		t.Fatal("expected an error from the rejected model")
	}
	if !strings.Contains(err.Error(), "Model reset to "+settings.DefaultModel) {
		t.Errorf("error %q should mention the model reset", err)
	}
	if got := a.store.Get().Model; got != settings.DefaultModel {
		t.Errorf("model = %q, want reset to %q", got, settings.DefaultModel)
	}
}

func TestModelErrorWithDefaultModelPassesThrough(t *testing.T) {
	a := newTestApp(t)
	a.stream = func(_ context.Context, _ realtime.Config, chunks <-chan []int16) (string, error) {
		drain(chunks)
		return "", errs.Realtime("model overloaded")
	}

	if err := a.startSession(); err != nil {
		t.Fatal(err)
	}
	_, err := a.stopSession(context.Background())
	if err == nil {
		t.Fatal("expected the stream error to surface")
	}
	if strings.Contains(err.Error(), "Model reset") {
		t.Errorf("default model must not be reset: %v", err)
	}
}

func TestEmptyTranscriptSkipsClipboard(t *testing.T) {
	a := newTestApp(t)
	a.stream = func(_ context.Context, _ realtime.Config, chunks <-chan []int16) (string, error) {
		drain(chunks)
		return "   ", nil
	}
	applied := false
	a.apply = func(string, bool) (clipboard.Outcome, error) {
		applied = true
		return clipboard.OutcomePasted, nil
	}

	if err := a.startSession(); err != nil {
		t.Fatal(err)
	}
	got, err := a.stopSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Error("clipboard must not be touched for a blank transcript")
	}
	if got.Pasted {
		t.Error("blank transcript reported as pasted")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventLoopPushToTalk(t *testing.T) {
	a := newTestApp(t)
	hk := hotkey.NewFake()
	sig := make(chan os.Signal, 1)
	done := make(chan int, 1)
	go func() { done <- eventLoop(a, a.recorder, hk, sig) }()

	hk.Press()
	waitFor(t, func() bool { return a.recorder.IsRecording() })
	hk.Release()
	waitFor(t, func() bool { return !a.recorder.IsRecording() })

	sig <- os.Interrupt
	select {
	case n := <-done:
		if n != 1 {
			t.Errorf("completed sessions = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit on signal")
	}
}

func TestEventLoopIgnoresStrayKeyup(t *testing.T) {
	a := newTestApp(t)
	hk := hotkey.NewFake()
	sig := make(chan os.Signal, 1)
	done := make(chan int, 1)
	go func() { done <- eventLoop(a, a.recorder, hk, sig) }()

	hk.Release()
	sig <- os.Interrupt
	select {
	case n := <-done:
		if n != 0 {
			t.Errorf("completed sessions = %d, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit on signal")
	}
}

func TestPasteFailureKeepsErrorCode(t *testing.T) {
	a := newTestApp(t)
	a.apply = func(string, bool) (clipboard.Outcome, error) {
		return clipboard.OutcomeCopied, errs.New(errs.CodePaste, "no display")
	}

	if err := a.startSession(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.stopSession(context.Background()); !errs.Has(err, errs.CodePaste) {
		t.Errorf("err = %v, want PASTE", err)
	}
}
