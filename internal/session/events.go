package session

// LeaveReasonQuit is reported when the server says a participant left.
const LeaveReasonQuit = "quit"

// Events receives engine notifications. Calls arrive in order on a single
// goroutine that is not the engine's dispatch loop, so handlers may call
// back into the Manager.
type Events interface {
	OnPeerJoined(uid string)
	OnPeerLeft(uid, reason string)
	OnError(kind ErrorKind, err error)
	OnPeerState(uid string, state PeerState)
}

// NopEvents ignores every notification. Embed it to implement only some of
// Events.
type NopEvents struct{}

func (NopEvents) OnPeerJoined(string)           {}
func (NopEvents) OnPeerLeft(string, string)     {}
func (NopEvents) OnError(ErrorKind, error)      {}
func (NopEvents) OnPeerState(string, PeerState) {}
