package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
)

// listenEvent is the wire shape of one change notification on the feed.
type listenEvent struct {
	Transition string `json:"transition"`
	DocumentID string `json:"documentId"`
}

// Listen opens the store's websocket change feed scoped by the filter.
//
// The feed delivers transition-tagged events at least once, in channel
// order. The subscription ends — and its channel closes — when the caller's
// context is cancelled, Close is called, or the socket drops. There is no
// automatic reconnect: the consuming layer treats a closed feed like an
// unmounted view and re-subscribes with a fresh full fetch.
func (c *Client) Listen(ctx context.Context, f Filter) (*Subscription, error) {
	query := listenByType
	params := map[string]string{"type": f.Type}
	if f.ID != "" {
		query = listenByID
		params["id"] = f.ID
	}

	wsURL, err := c.listenURL(query, params)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, apperror.Remote("listen", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event, 64)

	// Closing the connection on cancellation unblocks the read loop.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer cancel()
		for {
			var ev listenEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if ev.DocumentID == "" {
				continue // keepalive / welcome frames
			}
			select {
			case events <- Event{
				Transition:   Transition(ev.Transition),
				DocumentType: f.Type,
				DocumentID:   ev.DocumentID,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Subscription{Events: events, cancel: cancel}, nil
}

// listenURL builds the ws(s) URL for the listen endpoint, with the query
// and its parameters in the query string (parameters are JSON-encoded,
// keyed as $name, the way the query endpoint expects them).
func (c *Client) listenURL(query string, params map[string]string) (string, error) {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	values := url.Values{}
	values.Set("query", query)
	for name, v := range params {
		enc, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		values.Set("$"+name, string(enc))
	}
	return base + "/v1/data/listen/" + c.dataset + "?" + values.Encode(), nil
}
