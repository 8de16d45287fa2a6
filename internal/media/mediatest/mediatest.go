// Package mediatest provides a scriptable in-memory media.Factory. Sessions
// record every completed call and let tests hold or fail individual
// operations, emit local candidates and drive connection state.
package mediatest

import (
	"fmt"
	"sync"

	"github.com/BioHazard786/meshcall/internal/media"
)

// Op names a blocking session operation.
type Op string

const (
	OpCreateOffer          Op = "create-offer"
	OpCreateAnswer         Op = "create-answer"
	OpSetLocalDescription  Op = "set-local"
	OpSetRemoteDescription Op = "set-remote"
)

// Factory hands out fake sessions and remembers them per remote uid.
type Factory struct {
	mu        sync.Mutex
	sessions  map[string][]*Session
	configure map[string]func(*Session)
	err       error
}

var _ media.Factory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{
		sessions:  make(map[string][]*Session),
		configure: make(map[string]func(*Session)),
	}
}

// NewSession creates a session for remoteUID, applying any function
// registered with Configure first.
func (f *Factory) NewSession(remoteUID string) (media.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	s := newSession(remoteUID)
	if fn := f.configure[remoteUID]; fn != nil {
		fn(s)
	}
	f.sessions[remoteUID] = append(f.sessions[remoteUID], s)
	return s, nil
}

// Configure registers fn to run on every new session for remoteUID before
// the caller sees it.
func (f *Factory) Configure(remoteUID string, fn func(*Session)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configure[remoteUID] = fn
}

// FailNewSession makes NewSession return err until called again with nil.
func (f *Factory) FailNewSession(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Session returns the most recent session for remoteUID, or nil.
func (f *Factory) Session(remoteUID string) *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.sessions[remoteUID]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Sessions returns every session created for remoteUID.
func (f *Factory) Sessions(remoteUID string) []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions[remoteUID]...)
}

// Count is the number of sessions created so far.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, list := range f.sessions {
		n += len(list)
	}
	return n
}

// Session is a fake media.Session.
type Session struct {
	RemoteUID string

	mu         sync.Mutex
	calls      []string
	candidates []media.ICECandidate
	local      *media.SessionDescription
	remote     *media.SessionDescription
	gates      map[Op]chan struct{}
	failures   map[Op]error
	addErr     error
	closes     int
	seq        int

	onCandidate func(media.ICECandidate)
	onState     func(media.ConnectionState)
}

var _ media.Session = (*Session)(nil)

func newSession(remoteUID string) *Session {
	return &Session{
		RemoteUID: remoteUID,
		gates:     make(map[Op]chan struct{}),
		failures:  make(map[Op]error),
	}
}

// Hold makes calls to op block until Release.
func (s *Session) Hold(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gates[op]; !ok {
		s.gates[op] = make(chan struct{})
	}
}

// Release unblocks calls held on op.
func (s *Session) Release(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gates[op]; ok {
		close(g)
		delete(s.gates, op)
	}
}

// Fail makes op return err until Fail is called again with nil.
func (s *Session) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// FailAddCandidate makes AddICECandidate return err.
func (s *Session) FailAddCandidate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addErr = err
}

// EmitCandidate reports a locally gathered candidate to the registered
// handler.
func (s *Session) EmitCandidate(c media.ICECandidate) {
	s.mu.Lock()
	fn := s.onCandidate
	s.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

// SetState reports a connection state change to the registered handler.
func (s *Session) SetState(state media.ConnectionState) {
	s.mu.Lock()
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// Calls returns the completed calls in order, e.g. "set-remote:answer" or
// "add-candidate:c1".
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Candidates returns the remote candidates applied so far.
func (s *Session) Candidates() []media.ICECandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]media.ICECandidate(nil), s.candidates...)
}

// LocalDescription returns the last local description set.
func (s *Session) LocalDescription() (media.SessionDescription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return media.SessionDescription{}, false
	}
	return *s.local, true
}

// RemoteDescription returns the last remote description set.
func (s *Session) RemoteDescription() (media.SessionDescription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		return media.SessionDescription{}, false
	}
	return *s.remote, true
}

// CloseCount reports how many times Close was called.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// enter waits on any hold for op and returns the scripted failure.
func (s *Session) enter(op Op) error {
	s.mu.Lock()
	gate := s.gates[op]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *Session) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *Session) create(op Op, t media.SDPType) (media.SessionDescription, error) {
	if err := s.enter(op); err != nil {
		return media.SessionDescription{}, err
	}
	s.mu.Lock()
	s.seq++
	d := media.SessionDescription{Type: t, SDP: fmt.Sprintf("%s-%s-%d", t, s.RemoteUID, s.seq)}
	s.calls = append(s.calls, string(op))
	s.mu.Unlock()
	return d, nil
}

func (s *Session) CreateOffer() (media.SessionDescription, error) {
	return s.create(OpCreateOffer, media.SDPTypeOffer)
}

func (s *Session) CreateAnswer() (media.SessionDescription, error) {
	return s.create(OpCreateAnswer, media.SDPTypeAnswer)
}

func (s *Session) SetLocalDescription(d media.SessionDescription) error {
	if err := s.enter(OpSetLocalDescription); err != nil {
		return err
	}
	s.mu.Lock()
	s.local = &d
	s.calls = append(s.calls, fmt.Sprintf("%s:%s", OpSetLocalDescription, d.Type))
	s.mu.Unlock()
	return nil
}

func (s *Session) SetRemoteDescription(d media.SessionDescription) error {
	if err := s.enter(OpSetRemoteDescription); err != nil {
		return err
	}
	s.mu.Lock()
	s.remote = &d
	s.calls = append(s.calls, fmt.Sprintf("%s:%s", OpSetRemoteDescription, d.Type))
	s.mu.Unlock()
	return nil
}

func (s *Session) AddICECandidate(c media.ICECandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.candidates = append(s.candidates, c)
	s.calls = append(s.calls, "add-candidate:"+c.Candidate)
	return nil
}

func (s *Session) OnICECandidate(fn func(media.ICECandidate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCandidate = fn
}

func (s *Session) OnConnectionStateChange(fn func(media.ConnectionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

func (s *Session) Close() error {
	s.record("close")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}
