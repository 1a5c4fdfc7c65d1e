// client.go
// The read goroutine pulls framed messages off the socket and hands them to the broadcaster.
// The write goroutine drains the client's send queue back to the socket.
// Separating read/write means a slow peer only ever stalls its own writer.

package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func newClient(r *Relay, socket transport, seq uint64) *Client {
	ctx, cancel := context.WithCancel(r.ctx)
	c := &Client{
		id:          uuid.NewString(),
		seq:         seq,
		relay:       r,
		socket:      socket,
		send:        make(chan []byte, r.cfg.SendQueue),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		connectedAt: time.Now(),
	}
	if r.cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(r.cfg.RateLimit), r.cfg.RateBurst)
	}
	return c
}

func (c *Client) read() {
	for {
		message, err := c.socket.ReadMessage()
		if err != nil {
			c.close(err)
			return
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(c.ctx); err != nil {
				c.close(err)
				return
			}
		}
		c.relay.broadcast(message, c)
	}
}

func (c *Client) write() {
	for {
		select {
		case message := <-c.send:
			if err := c.socket.WriteMessage(message, c.writeDeadline()); err != nil {
				c.close(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeDeadline() time.Time {
	if c.relay.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.relay.cfg.WriteTimeout)
}

// close unregisters the client and marks it dead before returning. Only the
// first call has any effect, so the read loop, the write loop, the
// broadcaster and shutdown can all race to call it.
//
// The socket is closed on its own goroutine: closing a WebSocket waits for
// the close frame, and the caller may be another client's read loop.
func (c *Client) close(cause error) {
	c.closeOnce.Do(func() {
		c.relay.manager.remove(c)
		close(c.done)
		c.cancel()

		// The read loop has not returned yet, so wg is above zero.
		c.relay.wg.Add(1)
		go func() {
			defer c.relay.wg.Done()
			_ = c.socket.Close()
		}()

		reason := classify(cause)
		attrs := []any{
			"id", c.id,
			"remote", c.socket.RemoteAddr().String(),
			"transport", c.socket.Kind(),
			"reason", string(reason),
			"duration", time.Since(c.connectedAt).Round(time.Millisecond),
		}
		if reason != reasonPeerClosed && reason != reasonShutdown {
			attrs = append(attrs, "err", cause)
		}
		c.relay.log.Info("client disconnected", attrs...)
	})
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
