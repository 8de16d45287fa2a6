package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

// Default configuration values
const (
	DefaultServer = "ws://localhost:8080/ws"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds application configuration
type Config struct {
	// SignalingURL is the WebSocket endpoint of the signaling server
	SignalingURL string

	// Identity presented to the signaling server
	UID   string
	Token string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// UDPPortMin/UDPPortMax restrict the local ICE port range (0 = unrestricted)
	UDPPortMin uint16
	UDPPortMax uint16
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server     string
	UID        string
	Token      string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	UDPPorts   string // "min-max"
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	server := firstNonEmpty(opts.Server, os.Getenv("MESHCALL_SERVER"), DefaultServer)
	signalingURL, err := normalizeServerURL(server)
	if err != nil {
		return nil, err
	}

	// A uid is mandatory for joining; generate one when nothing was given
	uid := firstNonEmpty(opts.UID, os.Getenv("MESHCALL_UID"))
	if uid == "" {
		uid = NewUID()
	}

	forceRelay := opts.ForceRelay
	if !forceRelay {
		if v, ok := os.LookupEnv("FORCE_RELAY"); ok {
			forceRelay, _ = strconv.ParseBool(v)
		}
	}

	cfg := &Config{
		SignalingURL: signalingURL,
		UID:          uid,
		Token:        firstNonEmpty(opts.Token, os.Getenv("MESHCALL_TOKEN")),
		STUNServer:   firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer:   firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:     firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:     firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:   forceRelay,
	}

	if ports := firstNonEmpty(opts.UDPPorts, os.Getenv("UDP_PORT_RANGE")); ports != "" {
		cfg.UDPPortMin, cfg.UDPPortMax, err = parsePortRange(ports)
		if err != nil {
			return nil, err
		}
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// NewUID returns a readable participant id with a random suffix,
// e.g. "brave-otter-1f3a9c2e".
func NewUID() string {
	return petname.Generate(2, "-") + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// NewChannelID returns a random three word channel name.
func NewChannelID() string {
	return petname.Generate(3, "-")
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeServerURL accepts ws(s):// and http(s):// URLs as well as a bare
// host, and returns a WebSocket URL.
func normalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid signaling server URL: %s", raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported signaling URL scheme %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

func parsePortRange(s string) (uint16, uint16, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid UDP port range %q: want min-max", s)
	}

	first, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid UDP port range %q: %w", s, err)
	}
	last, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid UDP port range %q: %w", s, err)
	}
	if first == 0 || first > last {
		return 0, 0, fmt.Errorf("invalid UDP port range %q", s)
	}
	return uint16(first), uint16(last), nil
}
