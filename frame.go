// frame.go
// A TCP stream has no message boundaries, so both ends wrap every payload in a frame.
// The relay never looks inside the payload; it only needs to find where one ends.
// Sender and relay must agree on the framing, the relay forwards frames re-encoded
// with the same codec it read them with.

package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type Framing string

const (
	// FramingLength prefixes each payload with its size as a 4-byte big-endian integer.
	FramingLength Framing = "length"
	// FramingLine terminates each payload with '\n'.
	FramingLine Framing = "line"
)

const lengthHeaderSize = 4

// Codec reads and writes framed payloads on a byte stream.
type Codec interface {
	ReadFrame(r *bufio.Reader) ([]byte, error)
	WriteFrame(w io.Writer, payload []byte) error
}

// newCodec returns the codec for f. maxSize <= 0 disables the size check.
func newCodec(f Framing, maxSize int) (Codec, error) {
	switch f {
	case FramingLength:
		return lengthCodec{maxSize: maxSize}, nil
	case FramingLine:
		return lineCodec{maxSize: maxSize}, nil
	default:
		return nil, fmt.Errorf("unknown framing %q", f)
	}
}

type lengthCodec struct {
	maxSize int
}

func (c lengthCodec) ReadFrame(r *bufio.Reader) ([]byte, error) {
	var header [lengthHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		// io.EOF here means the peer closed cleanly between frames.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: partial header", errTruncatedFrame)
		}
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, errEmptyFrame
	}
	if c.maxSize > 0 && uint64(size) > uint64(c.maxSize) {
		return nil, fmt.Errorf("%w: %d > %d bytes", errFrameTooLarge, size, c.maxSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: want %d bytes", errTruncatedFrame, size)
		}
		return nil, err
	}
	return payload, nil
}

func (c lengthCodec) WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return errEmptyFrame
	}
	if c.maxSize > 0 && len(payload) > c.maxSize {
		return fmt.Errorf("%w: %d > %d bytes", errFrameTooLarge, len(payload), c.maxSize)
	}

	// One Write per frame so the header and payload cannot be split by a
	// short write on the caller's side.
	buf := make([]byte, lengthHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[lengthHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

type lineCodec struct {
	maxSize int
}

func (c lineCodec) ReadFrame(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		// +1 leaves room for the terminator.
		if c.maxSize > 0 && len(line) > c.maxSize+1 {
			return nil, fmt.Errorf("%w: line longer than %d bytes", errFrameTooLarge, c.maxSize)
		}

		switch {
		case err == nil:
			// Everything before '\n' is payload, a '\r' included. An empty
			// line carries nothing and is skipped.
			payload := line[:len(line)-1]
			if len(payload) == 0 {
				line = line[:0]
				continue
			}
			if c.maxSize > 0 && len(payload) > c.maxSize {
				return nil, fmt.Errorf("%w: %d > %d bytes", errFrameTooLarge, len(payload), c.maxSize)
			}
			return payload, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: unterminated line", errTruncatedFrame)
		default:
			return nil, err
		}
	}
}

func (c lineCodec) WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return errEmptyFrame
	}
	if bytes.IndexByte(payload, '\n') >= 0 {
		return errDelimiterInPayload
	}
	if c.maxSize > 0 && len(payload) > c.maxSize {
		return fmt.Errorf("%w: %d > %d bytes", errFrameTooLarge, len(payload), c.maxSize)
	}

	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
