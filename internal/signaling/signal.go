package signaling

// Header is the addressing common to every signal. UID is the sender for
// directed messages and the subject for membership messages.
type Header struct {
	ChannelID string
	UID       string
	ToUID     string
}

func (h Header) header() Header { return h }

// Signal is the closed set of decoded signaling messages. The concrete types
// are Join, Leave, UserList, UserJoined, UserLeft, Offer, Answer and Candidate.
type Signal interface {
	Kind() MessageType
	header() Header
}

// HeaderOf returns the addressing of s.
func HeaderOf(s Signal) Header { return s.header() }

// Join announces the local participant.
type Join struct {
	Header
	Token string
}

// Leave announces the local participant is going away.
type Leave struct {
	Header
}

// UserList is the membership snapshot sent to a participant that just joined.
type UserList struct {
	Header
	Users []string
}

// UserJoined reports that UID entered the channel.
type UserJoined struct {
	Header
}

// UserLeft reports that UID left the channel.
type UserLeft struct {
	Header
}

// Offer is an SDP offer from UID.
type Offer struct {
	Header
	SDP string
}

// Answer is an SDP answer from UID.
type Answer struct {
	Header
	SDP string
}

// Candidate is a trickled ICE candidate from UID.
type Candidate struct {
	Header
	Candidate     string
	SDPMLineIndex uint16
	SDPMid        string
}

func (Join) Kind() MessageType       { return MessageTypeJoin }
func (Leave) Kind() MessageType      { return MessageTypeLeave }
func (UserList) Kind() MessageType   { return MessageTypeUserList }
func (UserJoined) Kind() MessageType { return MessageTypeUserJoined }
func (UserLeft) Kind() MessageType   { return MessageTypeUserLeft }
func (Offer) Kind() MessageType      { return MessageTypeOffer }
func (Answer) Kind() MessageType     { return MessageTypeAnswer }
func (Candidate) Kind() MessageType  { return MessageTypeICECandidate }
