package pipecd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/five82/pipeview/internal/pipeline"
)

const (
	handshakeTimeout = 5 * time.Second
	pongWait         = 60 * time.Second
)

// ErrWatchUnsupported is returned when the server has no watch endpoint.
var ErrWatchUnsupported = errors.New("deployment watch not supported")

// WatchDeployment opens the watch websocket and calls onSnapshot for every
// pushed deployment until ctx is cancelled or the connection drops. It
// returns nil only when ctx ended the watch.
func (c *Client) WatchDeployment(ctx context.Context, deploymentID string, onSnapshot func(pipeline.Deployment)) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	wsURL := c.watchURL(deploymentID)

	header := http.Header{}
	c.setHeaders(header)
	header.Del("Accept")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return ErrWatchUnsupported
		}
		return fmt.Errorf("dial watch: %w", err)
	}
	defer func() { _ = conn.Close() }()

	slog.Debug("deployment watch connected", "url", wsURL)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		var d pipeline.Deployment
		if err := conn.ReadJSON(&d); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("watch closed by server: %w", err)
			}
			return fmt.Errorf("read watch: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		onSnapshot(d)
	}
}

func (c *Client) watchURL(deploymentID string) string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.ResolveReference(apiURL(deploymentID, "watch")).String()
}
