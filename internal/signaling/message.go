// Package signaling carries channel membership and SDP/ICE exchange between
// the local engine and the signaling server over a WebSocket.
package signaling

import "encoding/json"

// MessageType is the wire "type" discriminator.
type MessageType string

// Message type constants.
const (
	MessageTypeJoin         MessageType = "join"
	MessageTypeLeave        MessageType = "leave"
	MessageTypeOffer        MessageType = "offer"
	MessageTypeAnswer       MessageType = "answer"
	MessageTypeICECandidate MessageType = "ice-candidate"

	MessageTypeUserList   MessageType = "user-list"
	MessageTypeUserJoined MessageType = "user-joined"
	MessageTypeUserLeft   MessageType = "user-left"
)

// Message is the JSON envelope exchanged with the signaling server.
type Message struct {
	Type      MessageType     `json:"type"`
	ChannelID string          `json:"channelId,omitempty"`
	UID       string          `json:"uid,omitempty"`
	ToUID     string          `json:"toUid,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the optional data of a join message.
type JoinPayload struct {
	Token string `json:"token,omitempty"`
}

// SDPPayload carries an offer or answer.
type SDPPayload struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// CandidatePayload carries one trickled ICE candidate.
type CandidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
}

// UserListPayload lists the uids currently in the channel.
type UserListPayload struct {
	Users []string `json:"users"`
}

// memberPayload is where some servers nest the uid of user-joined/user-left.
type memberPayload struct {
	UID string `json:"uid"`
}
