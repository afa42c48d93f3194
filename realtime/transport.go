package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"nhooyr.io/websocket"
)

const endpoint = "wss://api.openai.com/v1/realtime"

// transport is the minimal socket surface the client needs; tests substitute
// in-memory fakes.
type transport interface {
	Send(ctx context.Context, payload []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close()
}

type dialFunc func(ctx context.Context) (transport, error)

func dialOpenAI(cfg Config) dialFunc {
	return func(ctx context.Context) (transport, error) {
		headers := http.Header{}
		headers.Set("Authorization", "Bearer "+cfg.APIKey)
		headers.Set("OpenAI-Beta", "realtime=v1")

		u := endpoint + "?model=" + url.QueryEscape(cfg.Model)
		conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
			HTTPHeader:   headers,
			Subprotocols: []string{"openai-realtime-v1"},
		})
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(1 << 22)
		return &wsTransport{conn: conn}, nil
	}
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Send(ctx context.Context, payload []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, payload)
}

// Recv returns the next text frame, skipping binary ones.
func (t *wsTransport) Recv(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (t *wsTransport) Close() {
	t.conn.Close(websocket.StatusNormalClosure, "")
}

// closeReason extracts the peer's close reason, if err is a close frame.
func closeReason(err error) (string, bool) {
	var ce websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	if ce.Reason == "" {
		return "connection closed", true
	}
	return ce.Reason, true
}
