// errors.go
// Sentinel errors and the mapping from a read or write error to a disconnect reason.

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// errRelayClosed is returned by serve and serveWebSocket after shutdown.
	errRelayClosed = errors.New("relay: closed")

	errFrameTooLarge      = errors.New("frame exceeds maximum message size")
	errEmptyFrame         = errors.New("empty frame")
	errTruncatedFrame     = errors.New("stream ended mid-frame")
	errDelimiterInPayload = errors.New("payload contains frame delimiter")

	errSlowConsumer = errors.New("send queue full")
	errShutdown     = errors.New("relay shutting down")
)

// closeReason is the class a teardown cause falls into. Every class ends the
// same way (remove and close); the class only feeds the disconnect log.
type closeReason string

const (
	reasonPeerClosed closeReason = "peer closed"
	reasonFraming    closeReason = "framing violation"
	reasonIO         closeReason = "io error"
	reasonSlow       closeReason = "slow consumer"
	reasonShutdown   closeReason = "shutdown"
)

func classify(err error) closeReason {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return reasonPeerClosed
	case errors.Is(err, errShutdown), errors.Is(err, context.Canceled):
		return reasonShutdown
	case errors.Is(err, errSlowConsumer):
		return reasonSlow
	case errors.Is(err, errFrameTooLarge),
		errors.Is(err, errEmptyFrame),
		errors.Is(err, errTruncatedFrame),
		errors.Is(err, errDelimiterInPayload):
		return reasonFraming
	default:
		return reasonIO
	}
}

// isTemporary reports whether an Accept error is worth retrying.
func isTemporary(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ECONNABORTED)
}
