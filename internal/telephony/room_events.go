package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const roomEventJoined = "participant_joined"

// roomEvent is one frame on the provider's room event stream.
type roomEvent struct {
	Event       string       `json:"event"`
	Room        string       `json:"room"`
	Participant *Participant `json:"participant,omitempty"`
}

// WaitForParticipant subscribes to the room's event stream over a
// websocket and blocks until the identified participant joins, the
// context expires (ErrJoinTimeout), or the stream fails.
func (c *APIClient) WaitForParticipant(ctx context.Context, room, identity string) (*Participant, error) {
	if room == "" {
		return nil, fmt.Errorf("telephony: room name required")
	}

	wsURL := fmt.Sprintf("%s/v1/rooms/%s/events", websocketBase(c.baseURL), room)

	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+c.apiKey)

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("telephony: room event stream dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("telephony: room event stream dial failed: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller's context expires.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(2*time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	c.logger.Info("waiting for participant to join",
		"room", room,
		"participant", identity,
	)

	for {
		var event roomEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return nil, ErrJoinTimeout
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, errors.New("telephony: room event stream closed before participant joined")
			}
			return nil, fmt.Errorf("telephony: read room event: %w", err)
		}

		if event.Event != roomEventJoined || event.Participant == nil {
			continue
		}
		if identity != "" && event.Participant.Identity != identity {
			continue
		}

		c.logger.Info("participant joined",
			"room", room,
			"participant", event.Participant.Identity,
		)
		return event.Participant, nil
	}
}

func websocketBase(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
