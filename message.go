// message.go
// Whiteboard payloads as clients encode them. The relay itself never decodes
// these; it forwards whatever bytes arrive in a frame. They live here for the
// peer tool and for tests.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindDraw  Kind = "draw"
	KindChat  Kind = "chat"
	KindClear Kind = "clear"
	// KindLabel stamps the nickname of whoever last drew onto the canvas.
	KindLabel Kind = "label"
)

var errInvalidMessage = errors.New("invalid message")

// Point is a canvas coordinate, encoded as [x, y].
type Point [2]int

func (p Point) X() int { return p[0] }
func (p Point) Y() int { return p[1] }

// Message is the JSON record exchanged between whiteboard clients.
// Which fields are set depends on Type.
type Message struct {
	Type  Kind   `json:"type"`
	Nick  string `json:"nick,omitempty"`
	Start *Point `json:"start,omitempty"`
	End   *Point `json:"end,omitempty"`
	Color string `json:"color,omitempty"`
	Width int    `json:"width,omitempty"`
	Text  string `json:"msg,omitempty"`
	Pos   *Point `json:"pos,omitempty"`
}

func newDraw(nick string, start, end Point, color string, width int) Message {
	return Message{Type: KindDraw, Nick: nick, Start: &start, End: &end, Color: color, Width: width}
}

func newChat(nick, text string) Message {
	return Message{Type: KindChat, Nick: nick, Text: text}
}

func newClear() Message {
	return Message{Type: KindClear}
}

func newLabel(nick string, pos Point) Message {
	return Message{Type: KindLabel, Nick: nick, Pos: &pos}
}

func (m Message) validate() error {
	switch m.Type {
	case KindDraw:
		if m.Start == nil || m.End == nil {
			return fmt.Errorf("%w: draw needs start and end", errInvalidMessage)
		}
		if m.Color == "" || m.Width <= 0 {
			return fmt.Errorf("%w: draw needs a color and a positive width", errInvalidMessage)
		}
	case KindChat:
		if m.Text == "" {
			return fmt.Errorf("%w: empty chat", errInvalidMessage)
		}
	case KindLabel:
		if m.Pos == nil {
			return fmt.Errorf("%w: label needs pos", errInvalidMessage)
		}
	case KindClear:
	default:
		return fmt.Errorf("%w: unknown type %q", errInvalidMessage, m.Type)
	}
	return nil
}

func encodeMessage(m Message) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func decodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %w", errInvalidMessage, err)
	}
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// String renders m the way the peer tool prints it.
func (m Message) String() string {
	switch m.Type {
	case KindDraw:
		return fmt.Sprintf("[draw] %s (%d,%d)->(%d,%d) %s w=%d",
			m.Nick, m.Start.X(), m.Start.Y(), m.End.X(), m.End.Y(), m.Color, m.Width)
	case KindChat:
		return fmt.Sprintf("%s: %s", m.Nick, m.Text)
	case KindClear:
		return "[clear]"
	case KindLabel:
		return fmt.Sprintf("[label] %s at (%d,%d)", m.Nick, m.Pos.X(), m.Pos.Y())
	default:
		return fmt.Sprintf("[%s]", m.Type)
	}
}
