// transport.go

package main

import (
	"bufio"
	"net"
	"time"
)

// transport is one client's message stream. ReadMessage is only ever called
// from the client's read loop and WriteMessage only from its write loop;
// Close may be called from anywhere.
type transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte, deadline time.Time) error
	Close() error
	RemoteAddr() net.Addr
	Kind() string
}

// streamTransport frames messages over a plain TCP connection.
type streamTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	codec  Codec
}

func newStreamTransport(conn net.Conn, codec Codec) *streamTransport {
	return &streamTransport{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 4096),
		codec:  codec,
	}
}

func (t *streamTransport) ReadMessage() ([]byte, error) {
	return t.codec.ReadFrame(t.reader)
}

func (t *streamTransport) WriteMessage(payload []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.codec.WriteFrame(t.conn, payload)
}

func (t *streamTransport) Close() error { return t.conn.Close() }

func (t *streamTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *streamTransport) Kind() string { return "tcp" }
