package config

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MESHCALL_SERVER", "MESHCALL_UID", "MESHCALL_TOKEN",
		"STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD",
		"FORCE_RELAY", "UDP_PORT_RANGE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SignalingURL != DefaultServer {
		t.Fatalf("SignalingURL=%q, want %q", cfg.SignalingURL, DefaultServer)
	}
	if cfg.UID == "" {
		t.Fatalf("expected a generated uid")
	}
	if got := cfg.GetSTUNServers(); len(got) != 1 || got[0] != DefaultSTUN {
		t.Fatalf("STUN servers=%v", got)
	}
	if cfg.GetTURNServers() != nil {
		t.Fatalf("expected no TURN servers by default")
	}
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MESHCALL_UID", "env-uid")
	t.Setenv("MESHCALL_SERVER", "env.example.com")
	t.Setenv("MESHCALL_TOKEN", "env-token")

	cfg, err := Load(Options{UID: "flag-uid"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UID != "flag-uid" {
		t.Fatalf("UID=%q, want flag-uid", cfg.UID)
	}
	if cfg.Token != "env-token" {
		t.Fatalf("Token=%q, want env-token", cfg.Token)
	}
	if cfg.SignalingURL != "wss://env.example.com/ws" {
		t.Fatalf("SignalingURL=%q", cfg.SignalingURL)
	}
}

func TestLoad_ServerURLNormalization(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"https://example.com":         "wss://example.com/ws",
		"http://localhost:8080":       "ws://localhost:8080/ws",
		"ws://localhost:9000/signal":  "ws://localhost:9000/signal",
		"example.com:8443":            "wss://example.com:8443/ws",
		"wss://example.com/ws?room=1": "wss://example.com/ws?room=1",
	}
	for in, want := range cases {
		cfg, err := Load(Options{Server: in, UID: "a"})
		if err != nil {
			t.Fatalf("Load(%q): %v", in, err)
		}
		if cfg.SignalingURL != want {
			t.Fatalf("Load(%q).SignalingURL=%q, want %q", in, cfg.SignalingURL, want)
		}
	}

	if _, err := Load(Options{Server: "ftp://example.com", UID: "a"}); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestLoad_ForceRelayRequiresTURN(t *testing.T) {
	clearEnv(t)
	if _, err := Load(Options{ForceRelay: true}); err == nil {
		t.Fatalf("expected error without TURN server")
	}

	cfg, err := Load(Options{ForceRelay: true, TURNServer: "turn.example.com", TURNUser: "u", TURNPass: "p"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	turn := cfg.GetTURNServers()
	if len(turn) != 3 || !strings.HasPrefix(turn[0], "turn:turn.example.com:3478") {
		t.Fatalf("TURN servers=%v", turn)
	}
	if u, p := cfg.GetTURNCredentials(); u != "u" || p != "p" {
		t.Fatalf("credentials=%q/%q", u, p)
	}
}

func TestLoad_UDPPortRange(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{UDPPorts: "50000-50100"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UDPPortMin != 50000 || cfg.UDPPortMax != 50100 {
		t.Fatalf("range=%d-%d", cfg.UDPPortMin, cfg.UDPPortMax)
	}

	for _, bad := range []string{"50000", "0-10", "20-10", "a-b", "1-70000"} {
		if _, err := Load(Options{UDPPorts: bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNewUID(t *testing.T) {
	a, b := NewUID(), NewUID()
	if a == b {
		t.Fatalf("NewUID returned %q twice", a)
	}
	if parts := strings.Split(a, "-"); len(parts) != 3 || len(parts[2]) != 8 {
		t.Fatalf("NewUID=%q, want word-word-xxxxxxxx", a)
	}
}

func TestNewChannelID(t *testing.T) {
	if parts := strings.Split(NewChannelID(), "-"); len(parts) != 3 {
		t.Fatalf("NewChannelID=%v", parts)
	}
}
