// websocket.go
// Optional WebSocket ingress so browser canvases can join the same board as TCP clients.
// WebSocket already frames messages, so each WebSocket message is one relay message.
// Both kinds of client share one registry and see each other's strokes.

package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

func (r *Relay) newUpgrader() *websocket.Upgrader {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if r.cfg.WSAnyOrigin {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	// A nil CheckOrigin rejects cross-origin browsers.
	return upgrader
}

// webSocketHandler upgrades requests and attaches them as relay clients.
func (r *Relay) webSocketHandler() http.Handler {
	upgrader := r.newUpgrader()
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.isClosed() {
			http.Error(w, "relay shutting down", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			r.log.Warn("websocket upgrade failed", "remote", req.RemoteAddr, "err", err)
			return
		}
		conn.SetReadLimit(int64(r.cfg.MaxMessageSize))

		r.attach(&wsTransport{conn: conn})
	})
}

// serveWebSocket serves the WebSocket endpoint on ln. It follows the same
// rules as serve: errRelayClosed after shutdown, and any other listener
// failure shuts the relay down.
func (r *Relay) serveWebSocket(ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(r.cfg.WSPath, r.webSocketHandler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !r.track(func() { r.servers[srv] = struct{}{} }) {
		_ = ln.Close()
		return errRelayClosed
	}
	defer r.wg.Done()
	defer r.untrack(func() { delete(r.servers, srv) })

	r.log.Info("websocket listening", "addr", ln.Addr().String(), "path", r.cfg.WSPath)

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) || r.isClosed() {
		return errRelayClosed
	}
	r.log.Error("websocket listener failed, shutting down", "addr", ln.Addr().String(), "err", err)
	r.closeAll()
	return fmt.Errorf("relay: websocket serve: %w", err)
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, message, err := t.conn.ReadMessage()
	if err != nil {
		return nil, translateWebSocketError(err)
	}
	if len(message) == 0 {
		return nil, errEmptyFrame
	}
	return message, nil
}

func (t *wsTransport) WriteMessage(payload []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	messageType := websocket.TextMessage
	if !utf8.Valid(payload) {
		messageType = websocket.BinaryMessage
	}
	return t.conn.WriteMessage(messageType, payload)
}

// Close sends a going-away close frame on a best-effort basis before
// dropping the connection.
func (t *wsTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(closeGracePeriod))
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *wsTransport) Kind() string { return "websocket" }

// translateWebSocketError maps gorilla's errors onto the relay's taxonomy:
// an orderly close is a clean disconnect and an oversized message is a
// framing violation.
func translateWebSocketError(err error) error {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		return fmt.Errorf("%w: %w", io.EOF, err)
	case errors.Is(err, websocket.ErrReadLimit):
		return fmt.Errorf("%w: %w", errFrameTooLarge, err)
	default:
		return err
	}
}
