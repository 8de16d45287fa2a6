package cmd

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/meshcall/internal/config"
	"github.com/BioHazard786/meshcall/internal/media/pionmedia"
	"github.com/BioHazard786/meshcall/internal/session"
	"github.com/BioHazard786/meshcall/internal/signaling"
	"github.com/BioHazard786/meshcall/internal/ui"
)

// NewManager wires the signaling client and pion media factory for cfg.
func NewManager(cfg *config.Config, events session.Events, logger *slog.Logger) (*session.Manager, error) {
	factory, err := pionmedia.NewFactory(cfg, pionmedia.WithLogger(logger))
	if err != nil {
		return nil, session.NewError("create media factory", err)
	}

	dial := func(token string) session.Transport {
		return signaling.NewClient(cfg.SignalingURL,
			signaling.WithToken(token),
			signaling.WithLogger(logger))
	}

	return session.NewManager(dial, factory,
		session.WithEvents(events),
		session.WithLogger(logger)), nil
}

// cliEvents prints engine events and counts them for the leave summary.
type cliEvents struct {
	mu     sync.Mutex
	roster *ui.RosterUI
	joined int
	left   int
	errors int
}

func (e *cliEvents) setRoster(r *ui.RosterUI) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roster = r
}

func (e *cliEvents) counts() (joined, left, errors int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.joined, e.left, e.errors
}

// say goes to the roster log when it is running, to stdout otherwise.
func (e *cliEvents) say(plain func(string), format string, args ...any) {
	e.mu.Lock()
	r := e.roster
	e.mu.Unlock()
	if r != nil {
		r.Logf(format, args...)
		return
	}
	plain(fmt.Sprintf(format, args...))
}

func (e *cliEvents) OnPeerJoined(uid string) {
	e.mu.Lock()
	e.joined++
	e.mu.Unlock()
	e.say(ui.PrintInfo, "%s %s joined", ui.IconPeer, uid)
}

func (e *cliEvents) OnPeerLeft(uid, reason string) {
	e.mu.Lock()
	e.left++
	e.mu.Unlock()
	e.say(ui.PrintInfo, "%s %s left (%s)", ui.IconLeft, uid, reason)
}

func (e *cliEvents) OnError(kind session.ErrorKind, err error) {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
	e.say(ui.PrintWarning, "%s error: %v", kind, err)
}

func (e *cliEvents) OnPeerState(uid string, state session.PeerState) {
	e.mu.Lock()
	r := e.roster
	e.mu.Unlock()
	// The roster refreshes its table on its own.
	if r != nil {
		return
	}
	switch state {
	case session.StateConnected:
		ui.PrintSuccessf("%s connected", uid)
	case session.StateOfferPending, session.StateAnswerPending, session.StateNegotiating:
		ui.PrintInfof("%s %s", uid, state)
	}
}

func peerRows(peers []session.PeerInfo) []ui.PeerRow {
	rows := make([]ui.PeerRow, 0, len(peers))
	for _, p := range peers {
		rows = append(rows, ui.PeerRow{
			UID:              p.UID,
			State:            p.State.String(),
			Initiator:        p.Initiator,
			LocalCandidates:  p.LocalCandidates,
			RemoteCandidates: p.RemoteCandidates,
			ConnectedAt:      p.ConnectedAt,
		})
	}
	return rows
}
