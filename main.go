// main.go
// main wires everything together: flags into a Config, the TCP accept loop,
// the optional WebSocket ingress, and shutdown on SIGINT/SIGTERM or when a listener dies.
// "whiteboard-relay peer" runs a terminal client instead of the relay.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "peer" {
		err = runPeer(os.Args[2:], os.Stdin, os.Stdout, os.Stderr)
	} else {
		err = run(os.Args[1:], os.Stdout, os.Stderr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, cfg.LogFormat, cfg.LogLevel)

	relay, err := newRelay(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	var wsln net.Listener
	if cfg.WSAddr != "" {
		wsln, err = net.Listen("tcp", cfg.WSAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen websocket: %w", err)
		}
	}

	serveErr := make(chan error, 2)
	go func() { serveErr <- relay.serve(ln) }()
	if wsln != nil {
		go func() { serveErr <- relay.serveWebSocket(wsln) }()
	}

	var fatal error
	select {
	case <-ctx.Done():
		logger.Info("interrupt received")
	case err := <-serveErr:
		if !errors.Is(err, errRelayClosed) {
			fatal = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := relay.shutdown(shutdownCtx); err != nil {
		return errors.Join(fatal, err)
	}
	return fatal
}
