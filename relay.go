// relay.go
// The relay owns the registry, the listeners and every client goroutine.
// shutdown stops the listeners before it closes any client.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Relay accepts whiteboard clients and fans every message out to all of them.
type Relay struct {
	cfg     Config
	log     *slog.Logger
	codec   Codec
	manager *ClientManager
	nextSeq atomic.Uint64

	// ctx is cancelled when shutdown starts; client contexts derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	listeners map[net.Listener]struct{}
	servers   map[*http.Server]struct{}

	// wg counts accept loops and client goroutines.
	wg sync.WaitGroup
}

func newRelay(cfg Config, logger *slog.Logger) (*Relay, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("relay: invalid config: %w", err)
	}
	codec, err := newCodec(cfg.Framing, cfg.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		cfg:       cfg,
		log:       logger,
		codec:     codec,
		manager:   newClientManager(),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
		servers:   make(map[*http.Server]struct{}),
	}, nil
}

// serve accepts framed TCP clients on ln until the relay is shut down or the
// listener fails. Transient accept errors are retried with backoff. Any other
// accept error shuts the whole relay down and is returned. After shutdown,
// serve returns errRelayClosed.
func (r *Relay) serve(ln net.Listener) error {
	if !r.track(func() { r.listeners[ln] = struct{}{} }) {
		_ = ln.Close()
		return errRelayClosed
	}
	defer r.wg.Done()
	defer r.untrack(func() { delete(r.listeners, ln) })

	r.log.Info("relay listening", "addr", ln.Addr().String(), "framing", string(r.cfg.Framing), "echo", r.cfg.Echo)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if r.isClosed() {
				return errRelayClosed
			}
			if isTemporary(err) {
				delay = max(minAcceptDelay, min(delay*2, maxAcceptDelay))
				r.log.Warn("accept failed, retrying", "err", err, "delay", delay)
				select {
				case <-time.After(delay):
				case <-r.ctx.Done():
				}
				continue
			}

			r.log.Error("listener failed, shutting down", "addr", ln.Addr().String(), "err", err)
			r.closeAll()
			return fmt.Errorf("relay: accept: %w", err)
		}
		delay = 0

		r.attach(newStreamTransport(conn, r.codec))
	}
}

// attach registers a freshly accepted transport and starts its loops. It
// returns nil, closing the transport, when the relay is already shutting down.
func (r *Relay) attach(socket transport) *Client {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = socket.Close()
		return nil
	}
	client := newClient(r, socket, r.nextSeq.Add(1))
	r.manager.add(client)
	r.wg.Add(2)
	r.mu.Unlock()

	r.log.Info("client connected",
		"id", client.id,
		"remote", socket.RemoteAddr().String(),
		"transport", socket.Kind(),
		"clients", r.manager.size(),
	)

	go func() {
		defer r.wg.Done()
		client.read()
	}()
	go func() {
		defer r.wg.Done()
		client.write()
	}()
	return client
}

// shutdown stops accepting and closes every client. It then waits until the
// accept loops and client loops have returned, or until ctx is done.
func (r *Relay) shutdown(ctx context.Context) error {
	r.closeAll()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("relay stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("relay: waiting for goroutines: %w", ctx.Err())
	}
}

// closeAll closes listeners first so no new client can register, then
// closes every registered client. Safe to call more than once.
func (r *Relay) closeAll() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	listeners := make([]net.Listener, 0, len(r.listeners))
	for ln := range r.listeners {
		listeners = append(listeners, ln)
	}
	servers := make([]*http.Server, 0, len(r.servers))
	for srv := range r.servers {
		servers = append(servers, srv)
	}
	r.mu.Unlock()

	r.log.Info("relay shutting down", "clients", r.manager.size())

	for _, ln := range listeners {
		_ = ln.Close()
	}
	for _, srv := range servers {
		// Close does not touch hijacked connections; those are closed
		// below along with the TCP clients.
		_ = srv.Close()
	}
	r.cancel()

	for _, c := range r.manager.snapshot() {
		c.close(errShutdown)
	}
}

// size reports the number of connected clients.
func (r *Relay) size() int {
	return r.manager.size()
}

func (r *Relay) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// track registers a listener or server and counts its accept loop in wg.
// It fails once shutdown has started.
func (r *Relay) track(add func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	add()
	r.wg.Add(1)
	return true
}

func (r *Relay) untrack(remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remove()
}
