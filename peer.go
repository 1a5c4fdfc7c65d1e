// peer.go
// A terminal client for the relay. Tests drive the relay through it too.

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Peer is a whiteboard client speaking the relay's framed TCP protocol.
type Peer struct {
	conn   net.Conn
	reader *bufio.Reader
	codec  Codec
	nick   string

	writeMu sync.Mutex
}

func dialPeer(ctx context.Context, addr, nick string, codec Codec) (*Peer, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newPeer(conn, nick, codec), nil
}

func newPeer(conn net.Conn, nick string, codec Codec) *Peer {
	return &Peer{
		conn:   conn,
		reader: bufio.NewReader(conn),
		codec:  codec,
		nick:   nick,
	}
}

func (p *Peer) send(m Message) error {
	data, err := encodeMessage(m)
	if err != nil {
		return err
	}
	return p.sendRaw(data)
}

// sendRaw frames payload as is. The relay does not care what it contains.
func (p *Peer) sendRaw(payload []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.codec.WriteFrame(p.conn, payload)
}

// receiveRaw returns the next frame. A zero timeout waits forever.
func (p *Peer) receiveRaw(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	return p.codec.ReadFrame(p.reader)
}

func (p *Peer) receive(timeout time.Duration) (Message, error) {
	data, err := p.receiveRaw(timeout)
	if err != nil {
		return Message{}, err
	}
	return decodeMessage(data)
}

func (p *Peer) Close() error { return p.conn.Close() }

// parseCommand turns one line of terminal input into a message or two:
// "/clear", "/draw x1 y1 x2 y2 [color] [width]" (followed by a label at the
// end point, as the canvas does on mouse release), or plain chat text.
func parseCommand(nick, line string) ([]Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return []Message{newChat(nick, line)}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/clear":
		return []Message{newClear()}, nil
	case "/draw":
		if len(fields) < 5 || len(fields) > 7 {
			return nil, errors.New("usage: /draw x1 y1 x2 y2 [color] [width]")
		}
		var coords [4]int
		for i := range coords {
			n, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return nil, fmt.Errorf("bad coordinate %q", fields[i+1])
			}
			coords[i] = n
		}
		color, width := "#000000", 3
		if len(fields) > 5 {
			color = fields[5]
		}
		if len(fields) > 6 {
			w, err := strconv.Atoi(fields[6])
			if err != nil || w <= 0 {
				return nil, fmt.Errorf("bad width %q", fields[6])
			}
			width = w
		}
		end := Point{coords[2], coords[3]}
		return []Message{
			newDraw(nick, Point{coords[0], coords[1]}, end, color, width),
			newLabel(nick, end),
		}, nil
	default:
		return nil, fmt.Errorf("unknown command %s", fields[0])
	}
}

// runPeer implements the "peer" subcommand: a terminal seat at the board.
func runPeer(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("peer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", defaultConfig().Addr(), "relay address")
	nick := fs.String("nick", "Anonymous", "nickname shown to other clients")
	framing := fs.String("framing", string(FramingLength), "framing: length or line")
	maxMessage := fs.Int("max-message", defaultConfig().MaxMessageSize, "largest accepted message in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	codec, err := newCodec(Framing(*framing), *maxMessage)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, "text", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	peer, err := dialPeer(ctx, *addr, *nick, codec)
	if err != nil {
		return err
	}
	defer peer.Close()
	logger.Info("connected", "addr", *addr, "nick", *nick)

	go func() {
		<-ctx.Done()
		_ = peer.Close()
	}()

	received := make(chan error, 1)
	go func() {
		for {
			data, err := peer.receiveRaw(0)
			if err != nil {
				received <- err
				return
			}
			m, err := decodeMessage(data)
			if err != nil {
				fmt.Fprintf(stdout, "[raw] %s\n", data)
				continue
			}
			fmt.Fprintln(stdout, m)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			msgs, err := parseCommand(peer.nick, line)
			if err != nil {
				fmt.Fprintln(stderr, err)
				continue
			}
			for _, m := range msgs {
				if err := peer.send(m); err != nil {
					return fmt.Errorf("send: %w", err)
				}
			}
		case err := <-received:
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				logger.Info("disconnected")
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
	}
}
