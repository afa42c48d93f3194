package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"murmur/clipboard"
	"murmur/errs"
	"murmur/log"
	"murmur/realtime"
	"murmur/recorder"
	"murmur/settings"
)

// Summary is what one completed push-to-talk session produced.
type Summary struct {
	Text     string
	Pasted   bool
	Duration time.Duration
}

// app ties the recorder, the streaming client and the settings store
// together. stream and apply are fields so tests can run a session
// without a network or a clipboard.
type app struct {
	recorder *recorder.Service
	store    *settings.Store
	apiKey   string

	stream func(ctx context.Context, cfg realtime.Config, chunks <-chan []int16) (string, error)
	apply  func(text string, autoPaste bool) (clipboard.Outcome, error)
}

func newApp(rec *recorder.Service, store *settings.Store, apiKey string) *app {
	return &app{
		recorder: rec,
		store:    store,
		apiKey:   apiKey,
		stream:   realtime.Stream,
		apply:    clipboard.Apply,
	}
}

// startSession begins capture and spawns the streaming task. The task
// consumes chunks while the user is still holding the key, so transcription
// overlaps recording.
func (a *app) startSession() error {
	if strings.TrimSpace(a.apiKey) == "" {
		return errs.MissingAPIKey()
	}

	st := a.store.Get()
	rate, err := a.recorder.Start(recorder.Request{
		SampleRate:  st.SampleRate,
		InputDevice: st.InputDevice,
	})
	if err != nil {
		return err
	}

	chunks := a.recorder.TakeChunks()
	if chunks == nil {
		a.recorder.Stop()
		return errs.AudioStreamUnavailable()
	}

	log.SessionStart(st.Model, rate)
	cfg := realtime.Config{APIKey: a.apiKey, Model: st.Model, SampleRate: rate}
	task := recorder.Go(func() (string, error) {
		return a.stream(context.Background(), cfg, chunks)
	})
	if err := a.recorder.AttachSession(task); err != nil {
		a.recorder.Stop()
		return err
	}
	return nil
}

// stopSession ends capture, waits for the transcript and hands it to the
// clipboard. When the configured model is rejected by the endpoint it is
// reset to the default so the next attempt can succeed.
func (a *app) stopSession(ctx context.Context) (Summary, error) {
	duration, err := a.recorder.Stop()
	if err != nil {
		return Summary{}, err
	}

	task := a.recorder.TakeSession()
	if task == nil {
		return Summary{}, errs.New(errs.CodeInternal, "no active session")
	}

	text, err := task.Join(ctx)
	if err != nil {
		st := a.store.Get()
		if realtime.IsModelError(err) && st.Model != settings.DefaultModel {
			bad := st.Model
			st.Model = settings.DefaultModel
			if uerr := a.store.Update(st); uerr != nil {
				log.Errorf("failed to reset model after %q was rejected: %v", bad, uerr)
				return Summary{}, err
			}
			return Summary{}, errs.Newf(errs.CodeRealtime,
				"%v. Model reset to %s, please try again.", err, settings.DefaultModel)
		}
		return Summary{}, err
	}

	pasted := false
	if strings.TrimSpace(text) != "" {
		st := a.store.Get()
		outcome, perr := a.apply(text, st.AutoPaste)
		if perr != nil {
			return Summary{}, errs.Wrap(errs.CodePaste,
				fmt.Sprintf("failed to paste transcription: %v", perr), perr)
		}
		pasted = outcome == clipboard.OutcomePasted
		if st.SaveHistory {
			log.TranscriptionText(text)
		}
	}

	return Summary{Text: text, Pasted: pasted, Duration: duration}, nil
}
