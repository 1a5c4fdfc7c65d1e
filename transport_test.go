package main

import (
	"errors"
	"io"
	"testing"

	"github.com/gorilla/websocket"
)

func TestTranslateWebSocketError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want closeReason
	}{
		{"normal closure", &websocket.CloseError{Code: websocket.CloseNormalClosure}, reasonPeerClosed},
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, reasonPeerClosed},
		{"no status", &websocket.CloseError{Code: websocket.CloseNoStatusReceived}, reasonPeerClosed},
		{"abnormal closure", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, reasonIO},
		{"read limit", websocket.ErrReadLimit, reasonFraming},
		{"reset", errors.New("read tcp: connection reset by peer"), reasonIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateWebSocketError(tt.err)
			if got := classify(err); got != tt.want {
				t.Fatalf("classify(%v) = %q, want %q", err, got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("translated error %v no longer wraps %v", err, tt.err)
			}
		})
	}
}

func TestCleanCloseWrapsEOF(t *testing.T) {
	err := translateWebSocketError(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("%v does not wrap io.EOF", err)
	}
}
