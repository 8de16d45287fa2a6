// Package dns resolves the signaling host when the system resolver is
// unreliable, by racing a set of public resolvers.
package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// PublicServers are raced when the system resolver fails.
var PublicServers = []string{
	"1.1.1.1",
	"1.0.0.1",
	"[2606:4700:4700::1111]",
	"8.8.8.8",
	"8.8.4.4",
	"[2001:4860:4860::8888]",
	"9.9.9.9",
	"149.112.112.112",
	"208.67.222.222",
}

var errNoAddress = errors.New("no IP addresses found")

// Resolver looks a host up locally first and falls back to a public race.
type Resolver struct {
	// Servers overrides PublicServers when set.
	Servers       []string
	LocalTimeout  time.Duration
	RemoteTimeout time.Duration
	Logger        *slog.Logger

	// lookup queries one server, "" meaning the system resolver.
	lookup func(ctx context.Context, host, server string) ([]string, error)
}

// Default is used by the package level Lookup and DialContext.
var Default = &Resolver{
	LocalTimeout:  time.Second,
	RemoteTimeout: 2 * time.Second,
}

// Lookup resolves host with the Default resolver.
func Lookup(ctx context.Context, host string) (string, error) {
	return Default.Lookup(ctx, host)
}

// DialContext dials with the Default resolver. It matches
// websocket.Dialer.NetDialContext.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return Default.DialContext(ctx, network, addr)
}

// Lookup returns one address for host, preferring IPv4. IP literals are
// returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	lctx, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	addrs, err := r.query(lctx, host, "")
	cancel()
	if err == nil {
		return pickIP(addrs)
	}
	r.logger().Debug("system resolver failed, racing public servers", "host", host, "error", err)

	return r.race(ctx, host)
}

// DialContext resolves the host part of addr and dials the result.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	servers := r.Servers
	if len(servers) == 0 {
		servers = PublicServers
	}

	ctx, cancel := context.WithTimeout(ctx, r.RemoteTimeout)
	defer cancel()

	type answer struct {
		server string
		addrs  []string
		err    error
	}
	answers := make(chan answer, len(servers))
	for _, s := range servers {
		go func(server string) {
			addrs, err := r.query(ctx, host, server)
			answers <- answer{server, addrs, err}
		}(s)
	}

	var errs []error
	for range servers {
		select {
		case a := <-answers:
			if a.err == nil && len(a.addrs) > 0 {
				r.logger().Debug("resolved via public server", "host", host, "server", a.server)
				return pickIP(a.addrs)
			}
			errs = append(errs, fmt.Errorf("%s: %w", a.server, a.err))
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all %d servers failed: %w", host, len(servers), errors.Join(errs...))
}

func (r *Resolver) query(ctx context.Context, host, server string) ([]string, error) {
	if r.lookup != nil {
		return r.lookup(ctx, host, server)
	}
	if server == "" {
		return net.DefaultResolver.LookupHost(ctx, host)
	}

	res := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
	return res.LookupHost(ctx, host)
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// pickIP prefers IPv4 addresses.
func pickIP(addrs []string) (string, error) {
	if len(addrs) == 0 {
		return "", errNoAddress
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, nil
		}
	}
	return addrs[0], nil
}
