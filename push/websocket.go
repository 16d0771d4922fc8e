package push

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/websocket"
)

// WSDialer connects to the push endpoint, authenticating with the backend
// bearer token both as a header and as a query parameter.
type WSDialer struct {
	URL     string
	Token   string
	Origin  string
	Timeout time.Duration
}

func (d WSDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("push: parsing url: %w", err)
	}
	if d.Token != "" {
		q := u.Query()
		q.Set("token", d.Token)
		u.RawQuery = q.Encode()
	}

	origin := d.Origin
	if origin == "" {
		scheme := "http"
		if u.Scheme == "wss" {
			scheme = "https"
		}
		origin = scheme + "://" + u.Host
	}

	cfg, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return nil, fmt.Errorf("push: config: %w", err)
	}
	cfg.Header = http.Header{}
	if d.Token != "" {
		cfg.Header.Set("Authorization", "Bearer "+d.Token)
	}
	if d.Timeout > 0 {
		cfg.Dialer = &net.Dialer{Timeout: d.Timeout}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: dial %s: %w", u.Host, err)
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Receive() (Event, error) {
	var ev Event
	err := websocket.JSON.Receive(c.ws, &ev)
	return ev, err
}

func (c *wsConn) Send(ev Event) error {
	return websocket.JSON.Send(c.ws, ev)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
