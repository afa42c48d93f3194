package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(RecorderBusy()); got != CodeRecorderBusy {
		t.Errorf("CodeOf = %q, want %q", got, CodeRecorderBusy)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Errorf("CodeOf(plain) = %q, want %q", got, CodeInternal)
	}
}

func TestHasThroughWrapping(t *testing.T) {
	inner := AudioEmpty()
	outer := fmt.Errorf("session failed: %w", inner)
	if !Has(outer, CodeAudioEmpty) {
		t.Error("Has should see AUDIO_EMPTY through fmt.Errorf wrapping")
	}
	if Has(outer, CodeRealtime) {
		t.Error("Has matched the wrong code")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("device gone")
	err := AudioDevice(cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if err.Error() != "audio input device error: device gone" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestMessagesAreHumanReadable(t *testing.T) {
	for _, tt := range []struct {
		err  *Error
		want string
	}{
		{RecorderBusy(), "recorder is already running"},
		{RecorderNotRunning(), "recorder is not running"},
		{AudioStreamUnavailable(), "audio stream unavailable"},
		{AudioEmpty(), "no audio samples captured"},
		{MissingAPIKey(), "missing OpenAI API key"},
		{Realtime("boom"), "realtime service error: boom"},
	} {
		if tt.err.Error() != tt.want {
			t.Errorf("got %q, want %q", tt.err.Error(), tt.want)
		}
	}
}
