package eventbridge

import (
	"net"
	"strconv"
	"time"

	"github.com/kingrea/beads-continuation/internal/config"
)

const (
	// DefaultMaxBodyBytes limits request payloads to 1 MB.
	DefaultMaxBodyBytes int64 = 1 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings is the listener configuration for Server. Bind address and the
// enabled switch come from config; the rest are fixed server limits.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig derives Settings from a resolved config. Env overrides
// and validation have already happened in config.NewConfig.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		Enabled:      true,
		Host:         config.DefaultBridgeHost,
		Port:         config.DefaultBridgePort,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg == nil {
		return s
	}
	s.Enabled = cfg.BridgeEnabled()
	if host := cfg.BridgeHost(); host != "" {
		s.Host = host
	}
	if port := cfg.BridgePort(); port > 0 {
		s.Port = port
	}
	return s
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}
