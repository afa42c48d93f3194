// Package realtime streams captured PCM chunks to the OpenAI realtime
// endpoint over a websocket and accumulates the transcript it returns.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"murmur/errs"
	"murmur/log"
)

// minAudioMs is the shortest recording worth a remote transcription call.
const minAudioMs = 200.0

type Config struct {
	APIKey     string
	Model      string
	SampleRate uint32 // negotiated capture rate, used for duration math
}

type appendFrame struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type commitFrame struct {
	Type string `json:"type"`
}

type responseFrame struct {
	Type     string          `json:"type"`
	Response responseRequest `json:"response"`
}

type responseRequest struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
}

type event struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream consumes chunks until the channel closes, then finalizes the buffer
// and reads events until the service reports completion. It succeeds or fails
// as a unit; the returned transcript is never empty.
func Stream(ctx context.Context, cfg Config, chunks <-chan []int16) (string, error) {
	return stream(ctx, cfg, chunks, dialOpenAI(cfg), sleepCtx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stream(
	ctx context.Context,
	cfg Config,
	chunks <-chan []int16,
	dial dialFunc,
	sleep func(context.Context, time.Duration) error,
) (string, error) {
	started := time.Now()

	conn, attempts, err := connect(ctx, dial, sleep)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	connectDur := time.Since(started)

	var totalSamples uint64
	var sentChunks int
	var sentBytes uint64
	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		payload, err := json.Marshal(appendFrame{
			Type:  "input_audio_buffer.append",
			Audio: encodeSamples(chunk),
		})
		if err != nil {
			return "", errs.Realtime(err.Error())
		}
		if err := conn.Send(ctx, payload); err != nil {
			return "", errs.Realtime(err.Error())
		}
		totalSamples += uint64(len(chunk))
		sentChunks++
		sentBytes += uint64(len(chunk) * 2)
	}

	if totalSamples == 0 {
		return "", errs.AudioEmpty()
	}

	totalMs := float64(totalSamples) / float64(cfg.SampleRate) * 1000
	if totalMs < minAudioMs {
		return "", errs.Validationf(
			"recording too short (only %.1f ms), please speak a bit longer", totalMs)
	}

	commit, err := json.Marshal(commitFrame{Type: "input_audio_buffer.commit"})
	if err != nil {
		return "", errs.Realtime(err.Error())
	}
	if err := conn.Send(ctx, commit); err != nil {
		return "", errs.Realtime(err.Error())
	}
	request, err := json.Marshal(responseFrame{
		Type: "response.create",
		Response: responseRequest{
			Modalities:   []string{"text"},
			Instructions: "Transcribe the latest audio sample",
		},
	})
	if err != nil {
		return "", errs.Realtime(err.Error())
	}
	if err := conn.Send(ctx, request); err != nil {
		return "", errs.Realtime(err.Error())
	}

	var transcript strings.Builder
	recvEvents, deltaEvents := 0, 0
	for {
		data, err := conn.Recv(ctx)
		if err != nil {
			if reason, ok := closeReason(err); ok {
				return "", errs.Realtime(reason)
			}
			return "", errs.Realtime(err.Error())
		}
		recvEvents++

		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			return "", errs.Realtime(err.Error())
		}
		switch ev.Type {
		case "response.output_text.delta":
			transcript.WriteString(ev.Delta)
			deltaEvents++
		case "response.completed":
			text := transcript.String()
			if strings.TrimSpace(text) == "" {
				return "", errs.Realtime("no transcript received from realtime endpoint")
			}
			log.StreamMetrics(log.StreamMetricsData{
				ConnectMs:   float64(connectDur.Milliseconds()),
				Attempts:    attempts,
				AudioS:      totalMs / 1000,
				SentChunks:  sentChunks,
				SentKB:      float64(sentBytes) / 1024,
				RecvEvents:  recvEvents,
				DeltaEvents: deltaEvents,
				TotalMs:     float64(time.Since(started).Milliseconds()),
			})
			return text, nil
		case "error":
			message := ev.Error.Message
			if message == "" {
				message = "unknown error"
			}
			return "", errs.Realtime(message)
		default:
			// Forward compatible: unrecognized events are ignored.
		}
	}
}

func connect(
	ctx context.Context,
	dial dialFunc,
	sleep func(context.Context, time.Duration) error,
) (transport, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		conn, err := dial(ctx)
		if err == nil {
			return conn, attempt, nil
		}
		lastErr = err
		if attempt == maxConnectAttempts {
			break
		}
		log.Warnf("websocket connect failed (attempt %d): %v", attempt, err)
		if err := sleep(ctx, nextDelay(attempt)); err != nil {
			return nil, attempt, errs.Realtime(err.Error())
		}
	}
	return nil, maxConnectAttempts, errs.Wrap(errs.CodeRealtime,
		fmt.Sprintf("realtime service error: connect failed after %d attempts: %v",
			maxConnectAttempts, lastErr), lastErr)
}

func encodeSamples(samples []int16) string {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// IsModelError reports whether err looks like a rejected model identifier.
// The caller may retry once with the default model.
func IsModelError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "not supported") || strings.Contains(msg, "model")
}
