package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"murmur/errs"

	"nhooyr.io/websocket"
)

type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	events  []string
	idx     int
	recvErr error
	closed  bool
}

func (f *fakeConn) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := make([]byte, len(payload))
	copy(p, payload)
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeConn) Recv(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx < len(f.events) {
		ev := f.events[f.idx]
		f.idx++
		return []byte(ev), nil
	}
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	return nil, io.EOF
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) sentTypes(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, p := range f.sent {
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(p, &frame); err != nil {
			t.Fatalf("sent frame is not JSON: %q", p)
		}
		types = append(types, frame.Type)
	}
	return types
}

func dialTo(conn *fakeConn) dialFunc {
	return func(context.Context) (transport, error) { return conn, nil }
}

func noSleep(context.Context, time.Duration) error { return nil }

func chunkSource(chunks ...[]int16) <-chan []int16 {
	ch := make(chan []int16, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func samples(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(i % 100)
	}
	return s
}

var testCfg = Config{APIKey: "sk-test", Model: "gpt-realtime-mini", SampleRate: 16000}

func TestEmptyAudioFails(t *testing.T) {
	conn := &fakeConn{}
	_, err := stream(context.Background(), testCfg, chunkSource(), dialTo(conn), noSleep)
	if !errs.Has(err, errs.CodeAudioEmpty) {
		t.Errorf("err = %v, want AUDIO_EMPTY", err)
	}
	if len(conn.sentTypes(t)) != 0 {
		t.Errorf("sent %v, want no frames", conn.sentTypes(t))
	}
}

func TestEmptyChunksAreSkipped(t *testing.T) {
	conn := &fakeConn{}
	_, err := stream(context.Background(), testCfg,
		chunkSource(nil, []int16{}, nil), dialTo(conn), noSleep)
	if !errs.Has(err, errs.CodeAudioEmpty) {
		t.Errorf("err = %v, want AUDIO_EMPTY", err)
	}
	if len(conn.sentTypes(t)) != 0 {
		t.Errorf("sent %v, want no frames", conn.sentTypes(t))
	}
}

func TestTooShortAudioSendsNoCommit(t *testing.T) {
	conn := &fakeConn{}
	// 1600 samples at 16 kHz is 100 ms, under the 200 ms floor.
	_, err := stream(context.Background(), testCfg,
		chunkSource(samples(1600)), dialTo(conn), noSleep)
	if !errs.Has(err, errs.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION", err)
	}
	for _, typ := range conn.sentTypes(t) {
		if typ != "input_audio_buffer.append" {
			t.Errorf("sent %q after too-short input", typ)
		}
	}
}

func TestDeltaConcatenationInOrder(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"response.output_text.delta","delta":"Hel"}`,
		`{"type":"response.output_text.delta","delta":"lo, "}`,
		`{"type":"response.output_text.delta","delta":"world"}`,
		`{"type":"response.completed"}`,
	}}
	text, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "Hello, world" {
		t.Errorf("transcript = %q, want %q", text, "Hello, world")
	}

	types := conn.sentTypes(t)
	want := []string{"input_audio_buffer.append", "input_audio_buffer.commit", "response.create"}
	if len(types) != len(want) {
		t.Fatalf("sent %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestAppendFrameCarriesBase64PCM(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"response.output_text.delta","delta":"x"}`,
		`{"type":"response.completed"}`,
	}}
	chunk := make([]int16, 4000)
	chunk[0], chunk[1] = 1, -2
	if _, err := stream(context.Background(), testCfg,
		chunkSource(chunk), dialTo(conn), noSleep); err != nil {
		t.Fatalf("stream: %v", err)
	}

	var frame appendFrame
	if err := json.Unmarshal(conn.sent[0], &frame); err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(frame.Audio)
	if err != nil {
		t.Fatalf("audio payload is not base64: %v", err)
	}
	if len(raw) != len(chunk)*2 {
		t.Fatalf("payload is %d bytes, want %d", len(raw), len(chunk)*2)
	}
	// Little-endian s16: 1 -> 01 00, -2 -> FE FF.
	if raw[0] != 0x01 || raw[1] != 0x00 || raw[2] != 0xFE || raw[3] != 0xFF {
		t.Errorf("payload prefix = % X, want 01 00 FE FF", raw[:4])
	}
}

func TestResponseCreateRequestsTextOnly(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"response.output_text.delta","delta":"x"}`,
		`{"type":"response.completed"}`,
	}}
	if _, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep); err != nil {
		t.Fatalf("stream: %v", err)
	}

	var frame responseFrame
	if err := json.Unmarshal(conn.sent[len(conn.sent)-1], &frame); err != nil {
		t.Fatal(err)
	}
	if len(frame.Response.Modalities) != 1 || frame.Response.Modalities[0] != "text" {
		t.Errorf("modalities = %v, want [text]", frame.Response.Modalities)
	}
	if frame.Response.Instructions != "Transcribe the latest audio sample" {
		t.Errorf("instructions = %q", frame.Response.Instructions)
	}
}

func TestErrorEventDiscardsPartialTranscript(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"response.output_text.delta","delta":"partial"}`,
		`{"type":"error","error":{"message":"rate limit exceeded"}}`,
	}}
	text, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep)
	if text != "" {
		t.Errorf("partial transcript leaked: %q", text)
	}
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("err = %v, want remote message", err)
	}
}

func TestUnknownEventsIgnored(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"session.created"}`,
		`{"type":"response.output_text.delta","delta":"ok"}`,
		`{"type":"input_audio_buffer.committed"}`,
		`{"type":"response.completed"}`,
	}}
	text, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "ok" {
		t.Errorf("transcript = %q, want %q", text, "ok")
	}
}

func TestCloseFrameAbortsWithReason(t *testing.T) {
	conn := &fakeConn{recvErr: websocket.CloseError{
		Code: websocket.StatusPolicyViolation, Reason: "session expired",
	}}
	_, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep)
	if err == nil || !strings.Contains(err.Error(), "session expired") {
		t.Errorf("err = %v, want close reason", err)
	}
}

func TestCloseFrameWithoutReason(t *testing.T) {
	conn := &fakeConn{recvErr: websocket.CloseError{Code: websocket.StatusNormalClosure}}
	_, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep)
	if err == nil || !strings.Contains(err.Error(), "connection closed") {
		t.Errorf("err = %v, want generic close message", err)
	}
}

func TestStreamEndWithoutCompletionFails(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"response.output_text.delta","delta":"half"}`,
	}} // then io.EOF
	_, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep)
	if !errs.Has(err, errs.CodeRealtime) {
		t.Errorf("err = %v, want REALTIME failure", err)
	}
}

func TestEmptyTranscriptAfterCompletionFails(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"response.output_text.delta","delta":"   "}`,
		`{"type":"response.completed"}`,
	}}
	_, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dialTo(conn), noSleep)
	if err == nil || !strings.Contains(err.Error(), "no transcript received") {
		t.Errorf("err = %v, want no-transcript failure", err)
	}
}

func TestConnectRetriesWithDoublingDelays(t *testing.T) {
	conn := &fakeConn{events: []string{
		`{"type":"response.output_text.delta","delta":"hi"}`,
		`{"type":"response.completed"}`,
	}}
	attempts := 0
	dial := func(context.Context) (transport, error) {
		attempts++
		if attempts <= 3 {
			return nil, fmt.Errorf("connection refused (attempt %d)", attempts)
		}
		return conn, nil
	}
	var delays []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	text, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dial, sleep)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if text != "hi" {
		t.Errorf("transcript = %q", text)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	want := []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, 1600 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestConnectGivesUpAfterAttemptCap(t *testing.T) {
	attempts := 0
	dial := func(context.Context) (transport, error) {
		attempts++
		return nil, errors.New("no route to host")
	}
	var delays []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := stream(context.Background(), testCfg,
		chunkSource(samples(4000)), dial, sleep)
	if err == nil || !strings.Contains(err.Error(), "no route to host") {
		t.Errorf("err = %v, want last dial failure in message", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want exactly 4", attempts)
	}
	if len(delays) != 3 {
		t.Errorf("slept %d times, want 3 (no sleep after the last attempt)", len(delays))
	}
}

func TestIsModelError(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want bool
	}{
		{errs.Realtime("model gpt-x is not supported"), true},
		{errs.Realtime("unknown model identifier"), true},
		{errs.Realtime("rate limit exceeded"), false},
		{nil, false},
	} {
		if got := IsModelError(tt.err); got != tt.want {
			t.Errorf("IsModelError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
