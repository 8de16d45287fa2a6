package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/BioHazard786/meshcall/internal/media"
	"github.com/BioHazard786/meshcall/internal/media/mediatest"
	"github.com/BioHazard786/meshcall/internal/signaling"
	"github.com/BioHazard786/meshcall/internal/signaling/signalingtest"
)

func TestJoin_SendsJoin(t *testing.T) {
	h := newHarness(t, "alice")
	h.join()

	if !h.mgr.Joined() {
		t.Fatalf("not joined")
	}
	sent := h.transport.Sent()
	want := signaling.Join{Header: signaling.Header{ChannelID: "c1", UID: "alice"}, Token: "tok"}
	if len(sent) != 1 || !reflect.DeepEqual(sent[0], want) {
		t.Fatalf("sent=%#v", sent)
	}
	if id, uid, ok := h.mgr.Channel(); !ok || id != "c1" || uid != "alice" {
		t.Fatalf("channel=%q uid=%q ok=%v", id, uid, ok)
	}
}

func TestJoin_InvalidArguments(t *testing.T) {
	h := newHarness(t, "alice")
	for _, args := range [][2]string{{"", "alice"}, {"c1", ""}} {
		err := h.mgr.Join(context.Background(), args[0], args[1], "")
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Join(%q, %q): err=%v", args[0], args[1], err)
		}
	}
	if h.mgr.Joined() {
		t.Fatalf("joined after invalid arguments")
	}
}

func TestJoin_AlreadyJoined(t *testing.T) {
	h := newHarness(t, "alice")
	h.join()

	if err := h.mgr.Join(context.Background(), "c2", "alice", ""); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("err=%v", err)
	}
	if id, _, _ := h.mgr.Channel(); id != "c1" {
		t.Fatalf("channel=%q", id)
	}
	if len(h.transport.Sent()) != 1 {
		t.Fatalf("second join reached the transport")
	}
}

func TestJoin_ConnectFailure(t *testing.T) {
	h := newHarness(t, "alice")
	refused := errors.New("connection refused")
	h.transport.connectErr = refused

	err := h.mgr.Join(context.Background(), "c1", "alice", "")
	if !errors.Is(err, ErrTransport) || !errors.Is(err, refused) {
		t.Fatalf("err=%v", err)
	}
	eventually(t, "transport error event", func() bool { return h.events.count("error:transport") == 1 })

	if !h.mgr.Joined() {
		t.Fatalf("channel must stay active until Leave")
	}
	if err := h.mgr.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if h.mgr.Joined() {
		t.Fatalf("still joined after Leave")
	}
}

func TestLeave_NotJoined(t *testing.T) {
	h := newHarness(t, "alice")
	if err := h.mgr.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if h.transport.disconnects != 0 {
		t.Fatalf("transport touched")
	}
	if h.mgr.Peers() != nil {
		t.Fatalf("peers without a channel")
	}
}

func TestLeave_DisposesEverything(t *testing.T) {
	h := newHarness(t, "alice")
	h.join()

	h.deliver(signaling.UserList{Header: signaling.Header{ChannelID: "c1"}, Users: []string{"alice", "bob", "carol"}})
	h.waitSent("bob", 1)
	h.waitSent("carol", 1)
	bob, carol := h.session("bob"), h.session("carol")
	recv := h.transport.receiver()

	if err := h.mgr.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if bob.CloseCount() != 1 || carol.CloseCount() != 1 {
		t.Fatalf("close counts bob=%d carol=%d", bob.CloseCount(), carol.CloseCount())
	}
	if h.transport.disconnects != 1 {
		t.Fatalf("disconnects=%d", h.transport.disconnects)
	}
	sent := h.transport.Sent()
	if _, ok := sent[len(sent)-1].(signaling.Leave); !ok {
		t.Fatalf("last sent=%#v, want Leave", sent[len(sent)-1])
	}

	// Late signals for the old channel go nowhere.
	recv.OnSignal(signaling.UserJoined{Header: signaling.Header{ChannelID: "c1", UID: "dave"}})
	recv.OnSignal(signaling.Offer{Header: signaling.Header{ChannelID: "c1", UID: "erin", ToUID: "alice"}, SDP: "o"})
	time.Sleep(50 * time.Millisecond)

	if h.factory.Count() != 2 {
		t.Fatalf("media sessions=%d after leave", h.factory.Count())
	}
	for _, e := range h.events.Events() {
		if e == "joined:dave" || e == "left:bob:quit" || e == "left:carol:quit" {
			t.Fatalf("unexpected event %q", e)
		}
	}

	if err := h.mgr.Leave(); err != nil {
		t.Fatalf("second Leave: %v", err)
	}
	if h.transport.disconnects != 1 {
		t.Fatalf("second Leave disconnected again")
	}
}

func TestRejoin_FreshBookkeeping(t *testing.T) {
	h := newHarness(t, "alice")
	h.join()
	h.deliver(signaling.UserList{Header: signaling.Header{ChannelID: "c1"}, Users: []string{"alice", "bob"}})
	h.waitSent("bob", 1)

	if err := h.mgr.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	h.transport = &fakeTransport{}
	h.join()
	if peers := h.sync(); len(peers) != 0 {
		t.Fatalf("peers carried over: %v", peers)
	}
	h.deliver(signaling.UserList{Header: signaling.Header{ChannelID: "c1"}, Users: []string{"alice", "bob"}})
	h.waitSent("bob", 1)
	if n := len(h.factory.Sessions("bob")); n != 2 {
		t.Fatalf("sessions=%d, want a fresh one", n)
	}
}

func TestTransportError_Surfaced(t *testing.T) {
	h := newHarness(t, "alice")
	h.join()

	h.transport.receiver().OnTransportError(signaling.ErrConnectionLost)
	eventually(t, "transport error", func() bool { return h.events.count("error:transport") == 1 })

	err := h.events.Errors()[0]
	if !errors.Is(err, ErrTransport) || !errors.Is(err, signaling.ErrConnectionLost) {
		t.Fatalf("err=%v", err)
	}
	if !h.mgr.Joined() {
		t.Fatalf("transport loss must not leave the channel")
	}
}

func TestSendFailure_Surfaced(t *testing.T) {
	h := newHarness(t, "alice")
	h.join()
	h.transport.mu.Lock()
	h.transport.sendErr = signaling.ErrNotConnected
	h.transport.mu.Unlock()

	h.deliver(signaling.UserList{Header: signaling.Header{ChannelID: "c1"}, Users: []string{"alice", "bob"}})
	eventually(t, "transport error", func() bool { return h.events.count("error:transport") == 1 })
}

type leaveOnPeerLeft struct {
	NopEvents
	mgr  *Manager
	done chan error
}

func (l *leaveOnPeerLeft) OnPeerLeft(uid, reason string) {
	l.done <- l.mgr.Leave()
}

func TestEvents_HandlerMayLeave(t *testing.T) {
	tr := &fakeTransport{}
	ev := &leaveOnPeerLeft{done: make(chan error, 1)}
	mgr := NewManager(func(string) Transport { return tr }, mediatest.NewFactory(),
		WithEvents(ev), WithLogger(quietLogger))
	ev.mgr = mgr

	if err := mgr.Join(context.Background(), "c1", "alice", ""); err != nil {
		t.Fatalf("Join: %v", err)
	}
	tr.receiver().OnSignal(signaling.UserLeft{Header: signaling.Header{ChannelID: "c1", UID: "bob"}})

	select {
	case err := <-ev.done:
		if err != nil {
			t.Fatalf("Leave from handler: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Leave from event handler deadlocked")
	}
	if mgr.Joined() {
		t.Fatalf("still joined")
	}
}

// Two engines meet through a real WebSocket hub.
func TestEndToEnd_ThroughSignalingHub(t *testing.T) {
	srv := signalingtest.NewServer()
	defer srv.Close()

	type side struct {
		mgr     *Manager
		factory *mediatest.Factory
		events  *recorder
	}
	newSide := func() side {
		s := side{factory: mediatest.NewFactory(), events: &recorder{}}
		dial := func(token string) Transport {
			return signaling.NewClient(srv.URL(), signaling.WithToken(token), signaling.WithLogger(quietLogger))
		}
		s.mgr = NewManager(dial, s.factory, WithEvents(s.events), WithLogger(quietLogger))
		return s
	}
	alice, bob := newSide(), newSide()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := alice.mgr.Join(ctx, "room", "alice", "ta"); err != nil {
		t.Fatalf("alice Join: %v", err)
	}
	defer alice.mgr.Leave()
	eventually(t, "alice registered", func() bool { return len(srv.Members("room")) == 1 })

	if err := bob.mgr.Join(ctx, "room", "bob", "tb"); err != nil {
		t.Fatalf("bob Join: %v", err)
	}
	defer bob.mgr.Leave()

	eventually(t, "alice sees bob", func() bool { return alice.events.count("joined:bob") == 1 })

	stateOf := func(s side, uid string) PeerState {
		for _, p := range s.mgr.Peers() {
			if p.UID == uid {
				return p.State
			}
		}
		return -1
	}
	eventually(t, "both negotiating", func() bool {
		return stateOf(alice, "bob") == StateNegotiating && stateOf(bob, "alice") == StateNegotiating
	})

	if got := srv.Received("alice", signaling.MessageTypeOffer); len(got) != 1 || got[0].ToUID != "bob" {
		t.Fatalf("alice offers=%+v", got)
	}
	if got := srv.Received("bob", signaling.MessageTypeOffer); len(got) != 0 {
		t.Fatalf("bob must not offer, got %+v", got)
	}

	// Candidates trickle through the hub in both directions.
	alice.factory.Session("bob").EmitCandidate(media.ICECandidate{Candidate: "a1", SDPMid: "0"})
	bob.factory.Session("alice").EmitCandidate(media.ICECandidate{Candidate: "b1", SDPMid: "0"})
	eventually(t, "candidates applied", func() bool {
		return len(bob.factory.Session("alice").Candidates()) == 1 && len(alice.factory.Session("bob").Candidates()) == 1
	})

	alice.factory.Session("bob").SetState(media.ConnectionStateConnected)
	eventually(t, "alice connected", func() bool { return stateOf(alice, "bob") == StateConnected })

	if err := bob.mgr.Leave(); err != nil {
		t.Fatalf("bob Leave: %v", err)
	}
	eventually(t, "alice sees bob leave", func() bool { return alice.events.count("left:bob:quit") == 1 })
	if _, ok := func() (PeerInfo, bool) {
		for _, p := range alice.mgr.Peers() {
			if p.UID == "bob" {
				return p, true
			}
		}
		return PeerInfo{}, false
	}(); ok {
		t.Fatalf("alice still has bob")
	}
	if n := alice.factory.Session("bob").CloseCount(); n != 1 {
		t.Fatalf("close count=%d", n)
	}

	records := srv.Records()
	if records[0].Authorization != "Bearer ta" {
		t.Fatalf("authorization=%q", records[0].Authorization)
	}
}
