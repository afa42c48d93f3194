// Package errs defines the error taxonomy shared by the recorder, the
// realtime client, and the command layer. Every error carries a stable
// machine code and a human-readable message.
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeRecorderBusy           Code = "RECORDER_BUSY"
	CodeRecorderNotRunning     Code = "RECORDER_NOT_RUNNING"
	CodeAudioStreamUnavailable Code = "AUDIO_STREAM_UNAVAILABLE"
	CodeAudioDevice            Code = "AUDIO_DEVICE"
	CodeAudioInit              Code = "AUDIO_INIT"
	CodeAudioEmpty             Code = "AUDIO_EMPTY"
	CodeRealtime               Code = "REALTIME"
	CodeMissingAPIKey          Code = "MISSING_API_KEY"
	CodeValidation             Code = "VALIDATION"
	CodePaste                  Code = "PASTE"
	CodeSettings               Code = "SETTINGS"
	CodeHotkey                 Code = "HOTKEY"
	CodeInternal               Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Has reports whether err (or anything it wraps) carries the given code.
func Has(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CodeOf returns the code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	e := &Error{Code: code, Message: fmt.Sprintf(format, args...)}
	for _, a := range args {
		if err, ok := a.(error); ok {
			e.cause = err
		}
	}
	return e
}

// Wrap keeps cause reachable through errors.Is/As while presenting message.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func RecorderBusy() *Error {
	return New(CodeRecorderBusy, "recorder is already running")
}

func RecorderNotRunning() *Error {
	return New(CodeRecorderNotRunning, "recorder is not running")
}

func AudioStreamUnavailable() *Error {
	return New(CodeAudioStreamUnavailable, "audio stream unavailable")
}

func AudioDevice(cause error) *Error {
	return Wrap(CodeAudioDevice, fmt.Sprintf("audio input device error: %v", cause), cause)
}

func AudioInit(cause error) *Error {
	return Wrap(CodeAudioInit, fmt.Sprintf("failed to initialize audio capture: %v", cause), cause)
}

func AudioEmpty() *Error {
	return New(CodeAudioEmpty, "no audio samples captured")
}

func Realtime(message string) *Error {
	return New(CodeRealtime, "realtime service error: "+message)
}

func MissingAPIKey() *Error {
	return New(CodeMissingAPIKey, "missing OpenAI API key")
}

func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}
