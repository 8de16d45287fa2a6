package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/meshcall/internal/media"
	"github.com/BioHazard786/meshcall/internal/media/mediatest"
	"github.com/BioHazard786/meshcall/internal/signaling"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeTransport struct {
	mu          sync.Mutex
	recv        signaling.Receiver
	sent        []signaling.Signal
	connectErr  error
	sendErr     error
	connects    int
	disconnects int
}

func (f *fakeTransport) Connect(ctx context.Context, recv signaling.Receiver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.recv = recv
	return nil
}

func (f *fakeTransport) Send(s signaling.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) receiver() signaling.Receiver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recv
}

func (f *fakeTransport) Sent() []signaling.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]signaling.Signal(nil), f.sent...)
}

// sentTo lists what was sent to uid, rendered as "offer", "answer" or
// "candidate:<c>".
func (f *fakeTransport) sentTo(uid string) []string {
	var out []string
	for _, s := range f.Sent() {
		if signaling.HeaderOf(s).ToUID != uid {
			continue
		}
		switch v := s.(type) {
		case signaling.Offer:
			out = append(out, "offer")
		case signaling.Answer:
			out = append(out, "answer")
		case signaling.Candidate:
			out = append(out, "candidate:"+v.Candidate)
		}
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) OnPeerJoined(uid string)       { r.add("joined:" + uid) }
func (r *recorder) OnPeerLeft(uid, reason string) { r.add("left:" + uid + ":" + reason) }
func (r *recorder) OnPeerState(uid string, s PeerState) {
	r.add(fmt.Sprintf("state:%s:%s", uid, s))
}
func (r *recorder) OnError(kind ErrorKind, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.add("error:" + kind.String())
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.Events() {
		if e == event {
			n++
		}
	}
	return n
}

type harness struct {
	t         *testing.T
	mgr       *Manager
	transport *fakeTransport
	factory   *mediatest.Factory
	events    *recorder
	local     string
}

func newHarness(t *testing.T, local string) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		transport: &fakeTransport{},
		factory:   mediatest.NewFactory(),
		events:    &recorder{},
		local:     local,
	}
	h.mgr = NewManager(func(string) Transport { return h.transport }, h.factory,
		WithEvents(h.events), WithLogger(quietLogger))
	t.Cleanup(func() { h.mgr.Leave() })
	return h
}

func (h *harness) join() {
	h.t.Helper()
	if err := h.mgr.Join(context.Background(), "c1", h.local, "tok"); err != nil {
		h.t.Fatalf("Join: %v", err)
	}
}

func (h *harness) header(from string) signaling.Header {
	return signaling.Header{ChannelID: "c1", UID: from, ToUID: h.local}
}

func (h *harness) deliver(s signaling.Signal) {
	h.t.Helper()
	recv := h.transport.receiver()
	if recv == nil {
		h.t.Fatalf("transport not connected")
	}
	recv.OnSignal(s)
}

// sync waits until everything posted so far has been processed.
func (h *harness) sync() []PeerInfo {
	return h.mgr.Peers()
}

func (h *harness) peer(uid string) (PeerInfo, bool) {
	for _, p := range h.sync() {
		if p.UID == uid {
			return p, true
		}
	}
	return PeerInfo{}, false
}

func (h *harness) session(uid string) *mediatest.Session {
	h.t.Helper()
	var s *mediatest.Session
	eventually(h.t, "media session for "+uid, func() bool {
		s = h.factory.Session(uid)
		return s != nil
	})
	return s
}

func (h *harness) waitState(uid string, want PeerState) {
	h.t.Helper()
	eventually(h.t, fmt.Sprintf("%s in %s", uid, want), func() bool {
		p, ok := h.peer(uid)
		return ok && p.State == want
	})
}

func (h *harness) waitSent(uid string, n int) []string {
	h.t.Helper()
	var got []string
	eventually(h.t, fmt.Sprintf("%d messages to %s", n, uid), func() bool {
		got = h.transport.sentTo(uid)
		return len(got) >= n
	})
	return got
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// settle gives in-flight async work a moment to finish.
func settle(h *harness) {
	time.Sleep(50 * time.Millisecond)
	h.sync()
}

func candidate(c string) media.ICECandidate {
	return media.ICECandidate{Candidate: c, SDPMid: "0"}
}
