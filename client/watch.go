package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsSubprotocol = "flashlist-v1"

	// Time allowed to write a control message to the service.
	watchWriteWait = 10 * time.Second

	// Time allowed to read the next message or pong. Anything heard from
	// the service extends it.
	watchPongWait = 60 * time.Second
)

// ChangeEvent reports that the user's outline changed on the service.
type ChangeEvent struct {
	SessionId string
	// Own is true when this client made the change.
	Own bool
}

type feedMessage struct {
	Type string `json:"type"`
	Data struct {
		SessionId string `json:"sessionId"`
	} `json:"data"`
}

func (r *Remote) wsURL() string {
	u := r.baseURL + apiRoot + "/ws"
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

// Watch streams outline change events to onChange until ctx ends or the
// connection drops. It returns ctx.Err() after a cancellation.
func (r *Remote) Watch(ctx context.Context, onChange func(ChangeEvent)) error {
	token, ok := r.session.Token()
	if !ok {
		return ErrNotLoggedIn
	}

	dialer := *r.dialer
	dialer.Subprotocols = []string{wsSubprotocol, token}

	conn, resp, err := dialer.DialContext(ctx, r.wsURL(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			r.session.Expire()
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.Close()

	pongWait := r.pongWait
	pingPeriod := (pongWait * 9) / 10
	extend := func() {
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(watchWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				// A failed ping surfaces through the read deadline
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(watchWriteWait))
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
				r.session.Expire()
				return &APIError{Status: http.StatusUnauthorized, Message: closeErr.Text}
			}
			return err
		}

		extend()

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid change feed message: %v", err)
			continue
		}
		if msg.Type != "outline_changed" {
			continue
		}
		onChange(ChangeEvent{SessionId: msg.Data.SessionId, Own: msg.Data.SessionId == r.sessionId})
	}
}
