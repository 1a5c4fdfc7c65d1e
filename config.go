// config.go
// Command-line flags become a Config. Defaults suit a relay on localhost.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the relay reads from the command line.
type Config struct {
	// Listen address for framed TCP clients.
	Host string
	Port int

	// WebSocket ingress. Disabled when WSAddr is empty.
	WSAddr      string
	WSPath      string
	WSAnyOrigin bool

	Framing        Framing
	MaxMessageSize int

	// Per-client outbound queue length and the time allowed for one write.
	SendQueue    int
	WriteTimeout time.Duration

	// Echo sends every message back to its sender as well.
	Echo bool

	// Inbound messages per second per client; 0 means unlimited.
	RateLimit float64
	RateBurst int

	ShutdownTimeout time.Duration

	LogLevel  slog.Level
	LogFormat string
}

func defaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            5000,
		WSPath:          "/ws",
		Framing:         FramingLength,
		MaxMessageSize:  64 * 1024,
		SendQueue:       256,
		WriteTimeout:    10 * time.Second,
		Echo:            true,
		RateBurst:       32,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        slog.LevelInfo,
		LogFormat:       "text",
	}
}

// Addr is the TCP listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Framing != FramingLength && c.Framing != FramingLine {
		errs = append(errs, fmt.Errorf("framing must be %q or %q, got %q", FramingLength, FramingLine, c.Framing))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max message size must be positive"))
	}
	if c.SendQueue <= 0 {
		errs = append(errs, errors.New("send queue must be positive"))
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, errors.New("write timeout must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, errors.New("burst must be at least 1 when rate limiting"))
	}
	if c.WSAddr != "" && !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("websocket path %q must start with /", c.WSPath))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// parseConfig builds a Config from relay command-line arguments.
func parseConfig(args []string, output io.Writer) (Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("whiteboard-relay", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "address to listen on for TCP clients")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on for TCP clients")
	fs.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "host:port for the WebSocket ingress (disabled if empty)")
	fs.StringVar(&cfg.WSPath, "ws-path", cfg.WSPath, "HTTP path of the WebSocket endpoint")
	fs.BoolVar(&cfg.WSAnyOrigin, "ws-any-origin", cfg.WSAnyOrigin, "accept WebSocket upgrades from any Origin")
	fs.Func("framing", "TCP framing: length or line (default length)", func(s string) error {
		cfg.Framing = Framing(s)
		return nil
	})
	fs.IntVar(&cfg.MaxMessageSize, "max-message", cfg.MaxMessageSize, "largest accepted message in bytes")
	fs.IntVar(&cfg.SendQueue, "send-queue", cfg.SendQueue, "messages buffered per client before it is dropped as too slow")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "time allowed for a single write to a client (0 disables)")
	fs.BoolVar(&cfg.Echo, "echo", cfg.Echo, "send messages back to their sender")
	fs.Float64Var(&cfg.RateLimit, "rate", cfg.RateLimit, "messages per second accepted from each client (0 is unlimited)")
	fs.IntVar(&cfg.RateBurst, "burst", cfg.RateBurst, "burst size for -rate")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "how long to wait for connections to drain on exit")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
