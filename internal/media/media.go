// Package media defines the boundary between the negotiation engine and a
// media stack. Implementations own ICE, DTLS and codecs; the engine only
// moves descriptions and candidates across.
package media

// SDPType is the role of a session description.
type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

// SessionDescription is an SDP blob with its role.
type SessionDescription struct {
	Type SDPType
	SDP  string
}

// ICECandidate is one trickled candidate.
type ICECandidate struct {
	Candidate     string
	SDPMid        string
	SDPMLineIndex uint16
}

// ConnectionState is the aggregate state of a media session.
type ConnectionState int

const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one pairwise media session. Create and Set calls may block;
// callers run them off their own event loop. Callbacks may fire on any
// goroutine.
type Session interface {
	CreateOffer() (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetLocalDescription(SessionDescription) error
	SetRemoteDescription(SessionDescription) error
	AddICECandidate(ICECandidate) error

	// OnICECandidate registers the handler for locally gathered candidates.
	OnICECandidate(func(ICECandidate))
	OnConnectionStateChange(func(ConnectionState))

	Close() error
}

// Factory creates a media session for a remote participant.
type Factory interface {
	NewSession(remoteUID string) (Session, error)
}
