package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/meshcall/internal/media"
	"github.com/BioHazard786/meshcall/internal/signaling"
)

// peer is the negotiation state for one remote uid. Every field is owned by
// the channel's dispatch loop.
type peer struct {
	ch     *channel
	uid    string
	logger *slog.Logger

	state     PeerState
	media     media.Session
	initiator bool

	offerStarted   bool
	offerSent      bool
	answerSent     bool
	remoteSDPSet   bool
	applyingAnswer bool
	mediaConnected bool

	pendingLocal  []media.ICECandidate
	pendingRemote []media.ICECandidate

	localSent     int
	remoteApplied int
	connectedAt   time.Time
}

func newPeer(ch *channel, uid string) *peer {
	return &peer{
		ch:     ch,
		uid:    uid,
		logger: ch.logger.With("peer", uid),
		state:  StateIdle,
	}
}

// current reports whether sess is still this peer's live media session.
// Async completions check it before touching state.
func (p *peer) current(sess media.Session) bool {
	return p.state != StateClosed && p.ch.peers[p.uid] == p && p.media == sess
}

func (p *peer) header() signaling.Header {
	return signaling.Header{ChannelID: p.ch.id, UID: p.ch.localUID, ToUID: p.uid}
}

func (p *peer) setState(s PeerState) {
	if p.state == s {
		return
	}
	p.logger.Debug("state change", "from", p.state, "to", s)
	p.state = s
	uid := p.uid
	p.ch.events.emit(func(e Events) { e.OnPeerState(uid, s) })

	if s == StateNegotiating && p.mediaConnected {
		p.markConnected()
	}
}

func (p *peer) fail(op string, err error) {
	p.logger.Warn("negotiation step failed", "op", op, "error", err)
	nerr := negotiationError(op, p.uid, err)
	p.ch.events.emit(func(e Events) { e.OnError(NegotiationError, nerr) })
}

// ensureMedia creates the media session on first use and wires its
// callbacks back onto the dispatch loop.
func (p *peer) ensureMedia() error {
	if p.media != nil {
		return nil
	}

	sess, err := p.ch.factory.NewSession(p.uid)
	if err != nil {
		return err
	}
	p.media = sess

	sess.OnICECandidate(func(c media.ICECandidate) {
		p.ch.post(func() {
			if p.current(sess) {
				p.onLocalCandidate(c)
			}
		})
	})
	sess.OnConnectionStateChange(func(s media.ConnectionState) {
		p.ch.post(func() {
			if p.current(sess) {
				p.onMediaState(s)
			}
		})
	})
	return nil
}

// async runs work off the loop and posts then back with its error. Results
// for a closed or replaced session are discarded.
func (p *peer) async(op string, sess media.Session, work func() error, then func(error)) {
	go func() {
		err := work()
		p.ch.post(func() {
			if !p.current(sess) {
				p.logger.Debug("discarding stale completion", "op", op)
				return
			}
			then(err)
		})
	}()
}

// startOffer begins the offer chain. Only the first call has any effect.
func (p *peer) startOffer() {
	if p.offerStarted {
		p.logger.Debug("offer already started")
		return
	}
	p.offerStarted = true
	p.initiator = true

	if err := p.ensureMedia(); err != nil {
		p.fail("create-session", err)
		return
	}
	p.setState(StateOfferPending)

	sess := p.media
	var offer media.SessionDescription
	p.async("create-offer", sess, func() (err error) {
		offer, err = sess.CreateOffer()
		return err
	}, func(err error) {
		if err != nil {
			p.fail("create-offer", err)
			return
		}
		p.async("set-local-description", sess, func() error {
			return sess.SetLocalDescription(offer)
		}, func(err error) {
			if err != nil {
				p.fail("set-local-description", err)
				return
			}
			if !p.ch.sendSignal("send-offer", signaling.Offer{Header: p.header(), SDP: offer.SDP}) {
				return
			}
			p.offerSent = true
			p.flushLocal()
		})
	})
}

// onOffer answers an inbound offer. It is accepted in any open state.
func (p *peer) onOffer(sdp string) {
	if err := p.ensureMedia(); err != nil {
		p.fail("create-session", err)
		return
	}
	p.setState(StateAnswerPending)

	sess := p.media
	p.async("set-remote-description", sess, func() error {
		return sess.SetRemoteDescription(media.SessionDescription{Type: media.SDPTypeOffer, SDP: sdp})
	}, func(err error) {
		if err != nil {
			p.fail("set-remote-description", err)
			return
		}
		p.remoteSDPSet = true
		p.flushRemote()

		var answer media.SessionDescription
		p.async("create-answer", sess, func() (err error) {
			answer, err = sess.CreateAnswer()
			return err
		}, func(err error) {
			if err != nil {
				p.fail("create-answer", err)
				return
			}
			p.async("set-local-description", sess, func() error {
				return sess.SetLocalDescription(answer)
			}, func(err error) {
				if err != nil {
					p.fail("set-local-description", err)
					return
				}
				if !p.ch.sendSignal("send-answer", signaling.Answer{Header: p.header(), SDP: answer.SDP}) {
					return
				}
				p.answerSent = true
				p.setState(StateNegotiating)
				p.flushLocal()
			})
		})
	})
}

// onAnswer applies the answer to our offer.
func (p *peer) onAnswer(sdp string) {
	if p.state != StateOfferPending || p.applyingAnswer {
		p.logger.Warn("dropping unexpected answer", "state", p.state)
		return
	}
	p.applyingAnswer = true

	sess := p.media
	p.async("set-remote-description", sess, func() error {
		return sess.SetRemoteDescription(media.SessionDescription{Type: media.SDPTypeAnswer, SDP: sdp})
	}, func(err error) {
		p.applyingAnswer = false
		if err != nil {
			p.fail("set-remote-description", err)
			return
		}
		p.remoteSDPSet = true
		p.flushRemote()
		p.setState(StateNegotiating)
	})
}

func (p *peer) onLocalCandidate(c media.ICECandidate) {
	if p.offerSent || p.answerSent {
		p.sendCandidate(c)
		return
	}
	p.pendingLocal = append(p.pendingLocal, c)
}

func (p *peer) onRemoteCandidate(c media.ICECandidate) {
	if p.remoteSDPSet {
		p.applyCandidate(c)
		return
	}
	p.pendingRemote = append(p.pendingRemote, c)
}

func (p *peer) sendCandidate(c media.ICECandidate) {
	err := p.ch.send(signaling.Candidate{
		Header:        p.header(),
		Candidate:     c.Candidate,
		SDPMLineIndex: c.SDPMLineIndex,
		SDPMid:        c.SDPMid,
	})
	if err != nil {
		p.logger.Warn("failed to send candidate", "error", err)
		return
	}
	p.localSent++
}

// applyCandidate runs on the loop so candidates keep their arrival order.
func (p *peer) applyCandidate(c media.ICECandidate) {
	if p.media == nil {
		return
	}
	if err := p.media.AddICECandidate(c); err != nil {
		p.logger.Warn("failed to add remote candidate", "error", err)
		return
	}
	p.remoteApplied++
}

func (p *peer) flushLocal() {
	pending := p.pendingLocal
	p.pendingLocal = nil
	if len(pending) > 0 {
		p.logger.Debug("flushing local candidates", "count", len(pending))
	}
	for _, c := range pending {
		p.sendCandidate(c)
	}
}

func (p *peer) flushRemote() {
	pending := p.pendingRemote
	p.pendingRemote = nil
	if len(pending) > 0 {
		p.logger.Debug("flushing remote candidates", "count", len(pending))
	}
	for _, c := range pending {
		p.applyCandidate(c)
	}
}

func (p *peer) onMediaState(s media.ConnectionState) {
	p.logger.Debug("media state", "state", s)
	if s != media.ConnectionStateConnected {
		return
	}
	p.mediaConnected = true
	if p.state == StateNegotiating {
		p.markConnected()
	}
}

func (p *peer) markConnected() {
	p.connectedAt = time.Now()
	p.setState(StateConnected)
	p.logger.Info("peer connected")
}

// close disposes the media session and drops buffered candidates. It is
// safe to call more than once.
func (p *peer) close() {
	if p.state == StateClosed {
		return
	}
	p.setState(StateClosed)
	p.pendingLocal = nil
	p.pendingRemote = nil

	if p.media != nil {
		if err := p.media.Close(); err != nil {
			p.logger.Debug("media close failed", "error", err)
		}
	}
}

// PeerInfo is a snapshot of one remote participant.
type PeerInfo struct {
	UID              string
	State            PeerState
	Initiator        bool
	LocalCandidates  int
	RemoteCandidates int
	ConnectedAt      time.Time
}

func (p *peer) info() PeerInfo {
	return PeerInfo{
		UID:              p.uid,
		State:            p.state,
		Initiator:        p.initiator,
		LocalCandidates:  p.localSent,
		RemoteCandidates: p.remoteApplied,
		ConnectedAt:      p.connectedAt,
	}
}

func (i PeerInfo) String() string {
	return fmt.Sprintf("%s (%s)", i.UID, i.State)
}
