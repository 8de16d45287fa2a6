package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/BioHazard786/meshcall/internal/config"
	"github.com/BioHazard786/meshcall/internal/session"
)

func TestPeerRows(t *testing.T) {
	at := time.Unix(1700000000, 0)
	rows := peerRows([]session.PeerInfo{
		{UID: "b", State: session.StateConnected, Initiator: true, LocalCandidates: 2, RemoteCandidates: 3, ConnectedAt: at},
		{UID: "c", State: session.StateAnswerPending},
	})
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[0].UID != "b" || rows[0].State != "connected" || !rows[0].Initiator || rows[0].RemoteCandidates != 3 || !rows[0].ConnectedAt.Equal(at) {
		t.Fatalf("row[0]=%+v", rows[0])
	}
	if rows[1].State != "answer-pending" || rows[1].Initiator {
		t.Fatalf("row[1]=%+v", rows[1])
	}
}

func TestCLIEventsCounts(t *testing.T) {
	var e cliEvents
	e.OnPeerJoined("b")
	e.OnPeerJoined("c")
	e.OnPeerLeft("b", session.LeaveReasonQuit)
	e.OnError(session.NegotiationError, errors.New("boom"))
	e.OnPeerState("c", session.StateConnected)

	joined, left, errs := e.counts()
	if joined != 2 || left != 1 || errs != 1 {
		t.Fatalf("counts=%d/%d/%d", joined, left, errs)
	}
}

func TestNewManager(t *testing.T) {
	cfg := &config.Config{SignalingURL: "ws://127.0.0.1:1/ws", UID: "a", STUNServer: config.DefaultSTUN}
	mgr, err := NewManager(cfg, session.NopEvents{}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if mgr.Joined() {
		t.Fatalf("fresh manager reports joined")
	}
}

func TestInviteCommand(t *testing.T) {
	if got := inviteCommand("brave-red-otter", ""); got != "meshcall join brave-red-otter" {
		t.Fatalf("invite=%q", got)
	}
	if got := inviteCommand("c1", "signal.example.com"); got != "meshcall join c1 --server signal.example.com" {
		t.Fatalf("invite=%q", got)
	}
}
