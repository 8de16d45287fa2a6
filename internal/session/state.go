package session

// PeerState is the negotiation state of one remote participant.
type PeerState int

const (
	StateIdle PeerState = iota
	StateOfferPending
	StateAnswerPending
	StateNegotiating
	StateConnected
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferPending:
		return "offer-pending"
	case StateAnswerPending:
		return "answer-pending"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ShouldInitiate reports whether local sends the offer to remote. The
// lexicographically smaller uid always offers, so exactly one side of each
// pair does.
func ShouldInitiate(local, remote string) bool {
	return local < remote
}
