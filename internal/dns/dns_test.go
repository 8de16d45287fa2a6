package dns

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func TestLookup_IPLiteralPassthrough(t *testing.T) {
	for _, addr := range []string{"127.0.0.1", "::1", "10.1.2.3"} {
		got, err := Lookup(context.Background(), addr)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", addr, err)
		}
		if got != addr {
			t.Fatalf("Lookup(%q)=%q", addr, got)
		}
	}
}

func TestPickIP_PrefersIPv4(t *testing.T) {
	got, err := pickIP([]string{"2001:db8::1", "192.0.2.7", "192.0.2.8"})
	if err != nil {
		t.Fatalf("pickIP: %v", err)
	}
	if got != "192.0.2.7" {
		t.Fatalf("pickIP=%q, want 192.0.2.7", got)
	}

	got, err = pickIP([]string{"2001:db8::1"})
	if err != nil || got != "2001:db8::1" {
		t.Fatalf("pickIP v6-only=%q, %v", got, err)
	}

	if _, err := pickIP(nil); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestDialContext_Loopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	conn, err := DialContext(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	conn.Close()
}

func TestResolver_FallsBackToPublicRace(t *testing.T) {
	r := &Resolver{
		Servers:       []string{"a", "b"},
		LocalTimeout:  time.Second,
		RemoteTimeout: time.Second,
		lookup: func(ctx context.Context, host, server string) ([]string, error) {
			switch server {
			case "":
				return nil, errors.New("system resolver down")
			case "a":
				return nil, errors.New("refused")
			default:
				return []string{"2001:db8::2", "198.51.100.4"}, nil
			}
		},
	}

	got, err := r.Lookup(context.Background(), "signal.example.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "198.51.100.4" {
		t.Fatalf("Lookup=%q, want 198.51.100.4", got)
	}
}

func TestResolver_AllServersFail(t *testing.T) {
	r := &Resolver{
		Servers:       []string{"a", "b"},
		LocalTimeout:  time.Second,
		RemoteTimeout: time.Second,
		lookup: func(ctx context.Context, host, server string) ([]string, error) {
			return nil, errors.New("nxdomain")
		},
	}

	_, err := r.Lookup(context.Background(), "missing.example.com")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "all 2 servers failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestResolver_PrefersSystemResolver(t *testing.T) {
	var public bool
	r := &Resolver{
		Servers:       []string{"a"},
		LocalTimeout:  time.Second,
		RemoteTimeout: time.Second,
		lookup: func(ctx context.Context, host, server string) ([]string, error) {
			if server != "" {
				public = true
			}
			return []string{"192.0.2.1"}, nil
		},
	}

	if got, err := r.Lookup(context.Background(), "signal.example.com"); err != nil || got != "192.0.2.1" {
		t.Fatalf("Lookup=%q, %v", got, err)
	}
	if public {
		t.Fatalf("public servers queried although the system resolver answered")
	}
}
