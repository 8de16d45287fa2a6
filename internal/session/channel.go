package session

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/BioHazard786/meshcall/internal/media"
	"github.com/BioHazard786/meshcall/internal/signaling"
)

const inboxSize = 256

// task is a closure executed on the dispatch loop.
type task func()

// channel is one joined channel. All of its state, including every peer,
// is owned by the goroutine running run.
type channel struct {
	id        string
	localUID  string
	token     string
	transport Transport
	factory   media.Factory
	events    *emitter
	logger    *slog.Logger

	peers  map[string]*peer
	closed bool

	inbox chan task
	quit  chan struct{}
	done  chan struct{}
}

func newChannel(id, localUID, token string, t Transport, f media.Factory, events Events, logger *slog.Logger) *channel {
	return &channel{
		id:        id,
		localUID:  localUID,
		token:     token,
		transport: t,
		factory:   f,
		events:    newEmitter(events),
		logger:    logger.With("channel", id, "uid", localUID),
		peers:     make(map[string]*peer),
		inbox:     make(chan task, inboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (c *channel) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			return
		}
	}
}

// post queues fn on the loop. It reports false once the loop has stopped.
func (c *channel) post(fn task) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.inbox <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (c *channel) call(fn task) bool {
	ran := make(chan struct{})
	if !c.post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-c.done:
		return false
	}
}

// OnSignal implements signaling.Receiver.
func (c *channel) OnSignal(s signaling.Signal) {
	if !c.post(func() { c.dispatch(s) }) {
		c.logger.Debug("dropping signal after leave", "type", s.Kind())
	}
}

// OnTransportError implements signaling.Receiver.
func (c *channel) OnTransportError(err error) {
	c.post(func() {
		if c.closed {
			return
		}
		c.logger.Error("signaling transport failed", "error", err)
		terr := transportError("signaling", err)
		c.events.emit(func(e Events) { e.OnError(TransportError, terr) })
	})
}

func (c *channel) send(s signaling.Signal) error {
	return c.transport.Send(s)
}

// sendSignal sends s and reports a TransportError event on failure.
func (c *channel) sendSignal(op string, s signaling.Signal) bool {
	if err := c.send(s); err != nil {
		c.logger.Warn("send failed", "op", op, "error", err)
		terr := transportError(op, err)
		c.events.emit(func(e Events) { e.OnError(TransportError, terr) })
		return false
	}
	return true
}

func (c *channel) protocolError(s signaling.Signal, reason string) {
	h := signaling.HeaderOf(s)
	c.logger.Warn("dropping signal",
		"error", ErrProtocol,
		"reason", reason,
		"type", s.Kind(),
		"from", h.UID,
		"to", h.ToUID,
		"msg_channel", h.ChannelID)
}

// dispatch handles one inbound signal.
func (c *channel) dispatch(s signaling.Signal) {
	if c.closed {
		return
	}

	h := signaling.HeaderOf(s)
	if h.ChannelID != "" && h.ChannelID != c.id {
		c.protocolError(s, "wrong channel")
		return
	}
	if h.ToUID != "" && h.ToUID != c.localUID {
		c.protocolError(s, "addressed to another uid")
		return
	}

	switch v := s.(type) {
	case signaling.UserList:
		for _, uid := range v.Users {
			if uid == c.localUID {
				continue
			}
			p := c.ensurePeer(uid)
			if ShouldInitiate(c.localUID, uid) {
				p.startOffer()
			}
		}

	case signaling.UserJoined:
		uid := v.UID
		c.events.emit(func(e Events) { e.OnPeerJoined(uid) })
		if uid != c.localUID {
			p := c.ensurePeer(uid)
			if ShouldInitiate(c.localUID, uid) {
				p.startOffer()
			}
		}

	case signaling.UserLeft:
		uid := v.UID
		c.events.emit(func(e Events) { e.OnPeerLeft(uid, LeaveReasonQuit) })
		if p, ok := c.peers[uid]; ok {
			p.close()
			delete(c.peers, uid)
		}

	case signaling.Offer:
		if c.fromSelf(s) {
			return
		}
		c.ensurePeer(v.UID).onOffer(v.SDP)

	case signaling.Answer:
		if c.fromSelf(s) {
			return
		}
		p, ok := c.peers[v.UID]
		if !ok {
			c.protocolError(s, "answer from unknown peer")
			return
		}
		p.onAnswer(v.SDP)

	case signaling.Candidate:
		if c.fromSelf(s) {
			return
		}
		c.ensurePeer(v.UID).onRemoteCandidate(media.ICECandidate{
			Candidate:     v.Candidate,
			SDPMid:        v.SDPMid,
			SDPMLineIndex: v.SDPMLineIndex,
		})

	default:
		c.protocolError(s, "unexpected message type")
	}
}

func (c *channel) fromSelf(s signaling.Signal) bool {
	if signaling.HeaderOf(s).UID == c.localUID {
		c.protocolError(s, "message from local uid")
		return true
	}
	return false
}

// ensurePeer returns the peer for uid, creating an idle one if needed.
func (c *channel) ensurePeer(uid string) *peer {
	if p, ok := c.peers[uid]; ok {
		return p
	}
	p := newPeer(c, uid)
	c.peers[uid] = p
	c.logger.Debug("peer added", "peer", uid)
	return p
}

// closePeers disposes every peer. Loop only.
func (c *channel) closePeers() {
	for uid, p := range c.peers {
		p.close()
		delete(c.peers, uid)
	}
	c.closed = true
}

func (c *channel) snapshot() []PeerInfo {
	out := make([]PeerInfo, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// leave tears the channel down: peers on the loop first, then the loop,
// then the transport.
func (c *channel) leave() error {
	if !c.call(c.closePeers) {
		c.logger.Debug("dispatch loop already stopped")
	}
	close(c.quit)
	<-c.done

	var errs []error
	if err := c.transport.Send(signaling.Leave{Header: signaling.Header{ChannelID: c.id, UID: c.localUID}}); err != nil {
		c.logger.Debug("leave not sent", "error", err)
	}
	if err := c.transport.Disconnect(); err != nil {
		errs = append(errs, err)
	}
	c.events.close()
	return errors.Join(errs...)
}
