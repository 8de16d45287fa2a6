package pionmedia

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/meshcall/internal/media"
	"github.com/pion/webrtc/v4"
)

// Session is a media.Session backed by a pion PeerConnection.
type Session struct {
	pc        *webrtc.PeerConnection
	meta      *webrtc.DataChannel
	remoteUID string
	hello     Hello
	logger    *slog.Logger

	mu          sync.Mutex
	remoteHello *Hello

	closeOnce sync.Once
	closeErr  error
}

var _ media.Session = (*Session)(nil)

func (s *Session) setup() error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := s.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		}); err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	negotiated := true
	id := metaChannelID
	dc, err := s.pc.CreateDataChannel(MetaChannelLabel, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		return fmt.Errorf("create meta channel: %w", err)
	}
	s.meta = dc

	dc.OnOpen(func() {
		data, err := encodeHello(s.hello)
		if err != nil {
			s.logger.Warn("encode hello failed", "error", err)
			return
		}
		if err := dc.Send(data); err != nil {
			s.logger.Debug("send hello failed", "error", err)
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		h, err := decodeHello(msg.Data)
		if err != nil {
			s.logger.Debug("dropping meta message", "error", err)
			return
		}
		if h.UID != s.remoteUID {
			s.logger.Warn("hello from unexpected uid", "hello_uid", h.UID)
		}
		s.mu.Lock()
		s.remoteHello = &h
		s.mu.Unlock()
		s.logger.Info("peer identified", "client", h.Client, "version", h.Version)
	})

	return nil
}

// RemoteHello returns the Hello received from the remote side, if any.
func (s *Session) RemoteHello() (Hello, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteHello == nil {
		return Hello{}, false
	}
	return *s.remoteHello, true
}

func (s *Session) CreateOffer() (media.SessionDescription, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return media.SessionDescription{}, err
	}
	return fromPion(offer), nil
}

func (s *Session) CreateAnswer() (media.SessionDescription, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return media.SessionDescription{}, err
	}
	return fromPion(answer), nil
}

func (s *Session) SetLocalDescription(d media.SessionDescription) error {
	return s.pc.SetLocalDescription(toPion(d))
}

func (s *Session) SetRemoteDescription(d media.SessionDescription) error {
	return s.pc.SetRemoteDescription(toPion(d))
}

func (s *Session) AddICECandidate(c media.ICECandidate) error {
	mid, idx := c.SDPMid, c.SDPMLineIndex
	init := webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMLineIndex: &idx,
	}
	if mid != "" {
		init.SDPMid = &mid
	}
	return s.pc.AddICECandidate(init)
}

func (s *Session) OnICECandidate(fn func(media.ICECandidate)) {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if c == nil {
			return
		}
		fn(fromPionCandidate(c.ToJSON()))
	})
}

func (s *Session) OnConnectionStateChange(fn func(media.ConnectionState)) {
	s.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fn(mapState(state))
	})
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pc.Close()
	})
	return s.closeErr
}

func fromPion(d webrtc.SessionDescription) media.SessionDescription {
	return media.SessionDescription{Type: media.SDPType(d.Type.String()), SDP: d.SDP}
}

func toPion(d media.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(string(d.Type)), SDP: d.SDP}
}

func fromPionCandidate(init webrtc.ICECandidateInit) media.ICECandidate {
	c := media.ICECandidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		c.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		c.SDPMLineIndex = *init.SDPMLineIndex
	}
	return c
}

func mapState(state webrtc.PeerConnectionState) media.ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateConnecting:
		return media.ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return media.ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return media.ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return media.ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return media.ConnectionStateClosed
	default:
		return media.ConnectionStateNew
	}
}
