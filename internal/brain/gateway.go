package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/akarpova/embra/internal/reliability"
)

const (
	gatewayConnectTimeout = 5 * time.Second
	gatewayWriteTimeout   = 3 * time.Second
	gatewayIdleTimeout    = 90 * time.Second
)

// GatewayAdapter streams generations over a websocket relay. Desktop installs
// route remote providers through a relay so credentials stay on the host; the
// relay forwards token deltas as they arrive.
type GatewayAdapter struct {
	wsURL  string
	token  string
	dialer websocket.Dialer
}

func NewGatewayAdapter(wsURL, token string) *GatewayAdapter {
	return &GatewayAdapter{
		wsURL: strings.TrimSpace(wsURL),
		token: strings.TrimSpace(token),
		dialer: websocket.Dialer{
			HandshakeTimeout: gatewayConnectTimeout,
		},
	}
}

type gatewayFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *gatewayError   `json:"error,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

type gatewayDeltaPayload struct {
	Text string `json:"text"`
}

type gatewayFinalPayload struct {
	Text string `json:"text"`
}

func (a *GatewayAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	delivered := false
	wrapped := func(delta string) error {
		delivered = true
		if onDelta == nil {
			return nil
		}
		return onDelta(delta)
	}
	resp, err := a.streamOnce(ctx, req, wrapped)
	// One reconnect for transient relay errors, but only if nothing
	// reached the caller yet.
	if err != nil && !delivered && ctx.Err() == nil {
		var ge *gatewayError
		if errors.As(err, &ge) && reliability.IsRetryableGatewayCode(ge.Code) {
			return a.streamOnce(ctx, req, wrapped)
		}
	}
	return resp, err
}

func (a *GatewayAdapter) streamOnce(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	conn, err := a.dial(ctx)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	// Cancel unblocks the blocking ReadJSON below.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	id := uuid.NewString()
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(gatewayWriteTimeout))
	if err := conn.WriteJSON(gatewayFrame{Type: "generate", ID: id, Payload: payload}); err != nil {
		return Response{}, fmt.Errorf("gateway write: %w", err)
	}

	var out strings.Builder
	for {
		_ = conn.SetReadDeadline(time.Now().Add(gatewayIdleTimeout))
		var frame gatewayFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			return Response{}, fmt.Errorf("gateway read: %w", err)
		}
		if frame.ID != "" && frame.ID != id {
			continue
		}

		switch frame.Type {
		case "delta":
			var p gatewayDeltaPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				return Response{}, fmt.Errorf("gateway delta payload: %w", err)
			}
			if p.Text == "" {
				continue
			}
			out.WriteString(p.Text)
			if onDelta != nil {
				if err := onDelta(p.Text); err != nil {
					return Response{}, err
				}
			}
		case "final":
			var p gatewayFinalPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				return Response{}, fmt.Errorf("gateway final payload: %w", err)
			}
			if p.Text != "" {
				return Response{Text: p.Text}, nil
			}
			return Response{Text: out.String()}, nil
		case "error":
			if frame.Error != nil {
				return Response{}, frame.Error
			}
			return Response{}, fmt.Errorf("gateway error without detail")
		default:
			// Ignore heartbeats and unknown frames.
		}
	}
}

func (a *GatewayAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	return a.StreamResponse(ctx, req, nil)
}

func (a *GatewayAdapter) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if a.token != "" {
		header.Set("Authorization", "Bearer "+a.token)
	}
	conn, res, err := a.dialer.DialContext(ctx, a.wsURL, header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("gateway dial status %d: %w", res.StatusCode, err)
		}
		return nil, fmt.Errorf("gateway dial: %w", err)
	}
	return conn, nil
}
