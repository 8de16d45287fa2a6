// Package session is the negotiation engine. A Manager joins one channel at
// a time and keeps a pairwise media session with every other participant,
// deciding who offers, buffering out-of-order candidates and sequencing each
// negotiation on a single dispatch loop.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/meshcall/internal/media"
	"github.com/BioHazard786/meshcall/internal/signaling"
)

// Manager is the engine facade.
type Manager struct {
	dial    Dialer
	factory media.Factory
	events  Events
	logger  *slog.Logger

	mu      sync.Mutex
	current *channel
}

// Option configures a Manager.
type Option func(*Manager)

// WithEvents sets the event handler.
func WithEvents(e Events) Option {
	return func(m *Manager) { m.events = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager that reaches the signaling server through
// dial and creates media sessions with factory.
func NewManager(dial Dialer, factory media.Factory, opts ...Option) *Manager {
	m := &Manager{
		dial:    dial,
		factory: factory,
		events:  NopEvents{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// Join enters channelID as uid. While a channel is active it returns
// ErrAlreadyJoined and does nothing else. A transport failure is reported
// through Events and returned; the channel stays active until Leave.
func (m *Manager) Join(ctx context.Context, channelID, uid, token string) error {
	if channelID == "" {
		return WrapError("join", ErrInvalidArgument, "empty channel id")
	}
	if uid == "" {
		return WrapError("join", ErrInvalidArgument, "empty uid")
	}

	m.mu.Lock()
	if m.current != nil {
		active := m.current.id
		m.mu.Unlock()
		m.logger.Warn("join ignored, already in a channel", "channel", active, "requested", channelID)
		return ErrAlreadyJoined
	}
	ch := newChannel(channelID, uid, token, m.dial(token), m.factory, m.events, m.logger)
	m.current = ch
	m.mu.Unlock()

	go ch.run()
	ch.logger.Info("joining channel")

	if err := ch.transport.Connect(ctx, ch); err != nil {
		return m.joinFailed(ch, "connect", err)
	}

	join := signaling.Join{Header: signaling.Header{ChannelID: channelID, UID: uid}, Token: token}
	if err := ch.transport.Send(join); err != nil {
		return m.joinFailed(ch, "send-join", err)
	}
	return nil
}

func (m *Manager) joinFailed(ch *channel, op string, err error) error {
	ch.logger.Error("join failed", "op", op, "error", err)
	terr := transportError(op, err)
	ch.events.emit(func(e Events) { e.OnError(TransportError, terr) })
	return fmt.Errorf("join %s: %w", ch.id, terr)
}

// Leave closes every peer, tells the server and disconnects. Without an
// active channel it does nothing.
func (m *Manager) Leave() error {
	m.mu.Lock()
	ch := m.current
	m.current = nil
	m.mu.Unlock()

	if ch == nil {
		m.logger.Warn("leave ignored, not in a channel")
		return nil
	}

	ch.logger.Info("leaving channel")
	if err := ch.leave(); err != nil {
		return NewError("leave", err)
	}
	return nil
}

// Joined reports whether a channel is active.
func (m *Manager) Joined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Channel returns the active channel id and local uid.
func (m *Manager) Channel() (channelID, uid string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", "", false
	}
	return m.current.id, m.current.localUID, true
}

// Peers returns a snapshot of the remote participants sorted by uid.
func (m *Manager) Peers() []PeerInfo {
	m.mu.Lock()
	ch := m.current
	m.mu.Unlock()
	if ch == nil {
		return nil
	}

	var out []PeerInfo
	ch.call(func() { out = ch.snapshot() })
	return out
}
