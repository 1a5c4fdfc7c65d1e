package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    []Kind
		wantErr bool
	}{
		{"hello there", []Kind{KindChat}, false},
		{"   ", nil, false},
		{"/clear", []Kind{KindClear}, false},
		{"/draw 1 2 3 4", []Kind{KindDraw, KindLabel}, false},
		{"/draw 1 2 3 4 #ff0000 7", []Kind{KindDraw, KindLabel}, false},
		{"/draw 1 2 3", nil, true},
		{"/draw 1 two 3 4", nil, true},
		{"/draw 1 2 3 4 red -1", nil, true},
		{"/erase", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			msgs, err := parseCommand("kim", tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(msgs) != len(tt.want) {
				t.Fatalf("got %d messages, want %d", len(msgs), len(tt.want))
			}
			for i, m := range msgs {
				if m.Type != tt.want[i] {
					t.Errorf("message %d type = %q, want %q", i, m.Type, tt.want[i])
				}
				if err := m.validate(); err != nil {
					t.Errorf("message %d invalid: %v", i, err)
				}
			}
		})
	}
}

func TestParseCommandDrawLabelsEndPoint(t *testing.T) {
	msgs, err := parseCommand("kim", "/draw 1 2 30 40 #00ff00 5")
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	draw, label := msgs[0], msgs[1]
	if *draw.Start != (Point{1, 2}) || *draw.End != (Point{30, 40}) || draw.Color != "#00ff00" || draw.Width != 5 {
		t.Errorf("draw = %+v", draw)
	}
	if *label.Pos != (Point{30, 40}) || label.Nick != "kim" {
		t.Errorf("label = %+v", label)
	}
}

func TestRunPeerChatsThroughRelay(t *testing.T) {
	r, addr := startRelay(t, nil)
	watcher := connect(t, r, addr, "watcher")[0]

	var stdout, stderr bytes.Buffer
	stdin := strings.NewReader("hello board\n/clear\n")

	done := make(chan error, 1)
	go func() {
		done <- runPeer([]string{"-addr", addr, "-nick", "term"}, stdin, &stdout, &stderr)
	}()

	first, err := watcher.receive(receiveTimeout)
	if err != nil {
		t.Fatalf("receive chat: %v", err)
	}
	if first.Type != KindChat || first.Nick != "term" || first.Text != "hello board" {
		t.Fatalf("first message = %+v", first)
	}
	second, err := watcher.receive(receiveTimeout)
	if err != nil {
		t.Fatalf("receive clear: %v", err)
	}
	if second.Type != KindClear {
		t.Fatalf("second message = %+v", second)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runPeer: %v (stderr: %s)", err, stderr.String())
		}
	case <-time.After(receiveTimeout):
		t.Fatal("runPeer did not return at end of input")
	}
}

func TestDialPeerFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	codec := mustCodec(t, FramingLength, 0)
	if _, err := dialPeer(ctx, "127.0.0.1:1", "nobody", codec); err == nil {
		t.Fatal("dialPeer to a closed port succeeded")
	}
}
