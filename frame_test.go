package main

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func mustCodec(t *testing.T, f Framing, maxSize int) Codec {
	t.Helper()
	codec, err := newCodec(f, maxSize)
	if err != nil {
		t.Fatalf("newCodec(%q): %v", f, err)
	}
	return codec
}

func TestLengthCodecRoundTripKeepsBoundaries(t *testing.T) {
	codec := mustCodec(t, FramingLength, 1024)

	payloads := [][]byte{
		[]byte(`{"type":"clear"}`),
		[]byte(`{"type":"chat","nick":"kim","msg":"hi"}`),
		[]byte("x"),
	}

	// Coalesce every frame into one buffer, the way TCP may deliver them.
	var stream bytes.Buffer
	for _, p := range payloads {
		if err := codec.WriteFrame(&stream, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	// A one-byte reader forces every frame to arrive split.
	reader := bufio.NewReader(&oneByteReader{r: &stream})
	for i, want := range payloads {
		got, err := codec.ReadFrame(reader)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
	}
	if _, err := codec.ReadFrame(reader); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame at end = %v, want io.EOF", err)
	}
}

func TestLengthCodecViolations(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"empty frame", []byte{0, 0, 0, 0}, errEmptyFrame},
		{"too large", []byte{0, 0, 0, 9, 'a'}, errFrameTooLarge},
		{"partial header", []byte{0, 0}, errTruncatedFrame},
		{"partial payload", []byte{0, 0, 0, 4, 'a', 'b'}, errTruncatedFrame},
		{"header only", []byte{0, 0, 0, 4}, errTruncatedFrame},
		{"clean end", nil, io.EOF},
	}

	codec := mustCodec(t, FramingLength, 8)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.ReadFrame(bufio.NewReader(bytes.NewReader(tt.input)))
			if !errors.Is(err, tt.want) {
				t.Fatalf("ReadFrame = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLengthCodecRejectsBadWrites(t *testing.T) {
	codec := mustCodec(t, FramingLength, 4)
	if err := codec.WriteFrame(io.Discard, nil); !errors.Is(err, errEmptyFrame) {
		t.Errorf("WriteFrame(nil) = %v, want errEmptyFrame", err)
	}
	if err := codec.WriteFrame(io.Discard, []byte("12345")); !errors.Is(err, errFrameTooLarge) {
		t.Errorf("WriteFrame(5 bytes) = %v, want errFrameTooLarge", err)
	}
}

func TestLineCodec(t *testing.T) {
	codec := mustCodec(t, FramingLine, 16)

	t.Run("splits and skips empty lines", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("one\n\n\ntwo\n"))
		for _, want := range []string{"one", "two"} {
			got, err := codec.ReadFrame(reader)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if string(got) != want {
				t.Errorf("ReadFrame = %q, want %q", got, want)
			}
		}
		if _, err := codec.ReadFrame(reader); !errors.Is(err, io.EOF) {
			t.Errorf("ReadFrame at end = %v, want io.EOF", err)
		}
	})

	t.Run("keeps CR", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("one\r\n\r\n"))
		for _, want := range []string{"one\r", "\r"} {
			got, err := codec.ReadFrame(reader)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if string(got) != want {
				t.Errorf("ReadFrame = %q, want %q", got, want)
			}
		}

		var buf bytes.Buffer
		if err := codec.WriteFrame(&buf, []byte("one\r")); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		if got := buf.String(); got != "one\r\n" {
			t.Errorf("wrote %q, want %q", got, "one\r\n")
		}
	})

	t.Run("unterminated line", func(t *testing.T) {
		_, err := codec.ReadFrame(bufio.NewReader(strings.NewReader("half")))
		if !errors.Is(err, errTruncatedFrame) {
			t.Fatalf("ReadFrame = %v, want errTruncatedFrame", err)
		}
	})

	t.Run("too long", func(t *testing.T) {
		// Smaller than the payload so ReadSlice has to report ErrBufferFull.
		reader := bufio.NewReaderSize(strings.NewReader(strings.Repeat("a", 64)+"\n"), 16)
		_, err := codec.ReadFrame(reader)
		if !errors.Is(err, errFrameTooLarge) {
			t.Fatalf("ReadFrame = %v, want errFrameTooLarge", err)
		}
	})

	t.Run("write appends newline", func(t *testing.T) {
		var buf bytes.Buffer
		if err := codec.WriteFrame(&buf, []byte(`{"type":"clear"}`)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		if got := buf.String(); got != "{\"type\":\"clear\"}\n" {
			t.Errorf("wrote %q", got)
		}
	})

	t.Run("write rejects embedded newline", func(t *testing.T) {
		if err := codec.WriteFrame(io.Discard, []byte("a\nb")); !errors.Is(err, errDelimiterInPayload) {
			t.Fatalf("WriteFrame = %v, want errDelimiterInPayload", err)
		}
	})
}

func TestNewCodecUnknownFraming(t *testing.T) {
	if _, err := newCodec("xml", 0); err == nil {
		t.Fatal("newCodec(xml) succeeded")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want closeReason
	}{
		{nil, reasonPeerClosed},
		{io.EOF, reasonPeerClosed},
		{errShutdown, reasonShutdown},
		{errSlowConsumer, reasonSlow},
		{errTruncatedFrame, reasonFraming},
		{errFrameTooLarge, reasonFraming},
		{errors.New("connection reset by peer"), reasonIO},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type oneByteReader struct {
	r io.Reader
}

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}
