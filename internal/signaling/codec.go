package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrMalformed   = errors.New("signaling: malformed message")
	ErrUnknownType = errors.New("signaling: unknown message type")
)

// Encode serializes s into its JSON wire form.
func Encode(s Signal) ([]byte, error) {
	msg, err := ToMessage(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// ToMessage converts s into the wire envelope.
func ToMessage(s Signal) (Message, error) {
	h := s.header()
	msg := Message{
		Type:      s.Kind(),
		ChannelID: h.ChannelID,
		UID:       h.UID,
		ToUID:     h.ToUID,
	}

	var payload any
	switch v := s.(type) {
	case Join:
		if v.Token != "" {
			payload = JoinPayload{Token: v.Token}
		}
	case Leave, UserJoined, UserLeft:
	case UserList:
		users := v.Users
		if users == nil {
			users = []string{}
		}
		payload = UserListPayload{Users: users}
	case Offer:
		payload = SDPPayload{SDP: v.SDP, Type: string(MessageTypeOffer)}
	case Answer:
		payload = SDPPayload{SDP: v.SDP, Type: string(MessageTypeAnswer)}
	case Candidate:
		idx, mid := v.SDPMLineIndex, v.SDPMid
		payload = CandidatePayload{Candidate: v.Candidate, SDPMLineIndex: &idx, SDPMid: &mid}
	default:
		return Message{}, fmt.Errorf("%w: %T", ErrUnknownType, s)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", msg.Type, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// Decode parses one JSON frame into a Signal. Any error wraps ErrMalformed or
// ErrUnknownType.
func Decode(data []byte) (Signal, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected trailing data", ErrMalformed)
	}
	return FromMessage(msg)
}

// FromMessage validates msg and converts it to its Signal variant.
func FromMessage(msg Message) (Signal, error) {
	h := Header{ChannelID: msg.ChannelID, UID: msg.UID, ToUID: msg.ToUID}

	switch msg.Type {
	case MessageTypeJoin:
		if h.UID == "" {
			return nil, malformed(msg.Type, "missing uid")
		}
		var p JoinPayload
		if err := decodeOptional(msg.Data, &p); err != nil {
			return nil, malformed(msg.Type, err.Error())
		}
		return Join{Header: h, Token: p.Token}, nil

	case MessageTypeLeave:
		if h.UID == "" {
			return nil, malformed(msg.Type, "missing uid")
		}
		return Leave{Header: h}, nil

	case MessageTypeUserList:
		var p UserListPayload
		if err := decodeRequired(msg.Data, &p); err != nil {
			return nil, malformed(msg.Type, err.Error())
		}
		users := make([]string, 0, len(p.Users))
		for _, u := range p.Users {
			if u != "" {
				users = append(users, u)
			}
		}
		return UserList{Header: h, Users: users}, nil

	case MessageTypeUserJoined, MessageTypeUserLeft:
		if h.UID == "" {
			var p memberPayload
			if err := decodeOptional(msg.Data, &p); err != nil {
				return nil, malformed(msg.Type, err.Error())
			}
			h.UID = p.UID
		}
		if h.UID == "" {
			return nil, malformed(msg.Type, "missing uid")
		}
		if msg.Type == MessageTypeUserJoined {
			return UserJoined{Header: h}, nil
		}
		return UserLeft{Header: h}, nil

	case MessageTypeOffer, MessageTypeAnswer:
		if h.UID == "" {
			return nil, malformed(msg.Type, "missing sender uid")
		}
		var p SDPPayload
		if err := decodeRequired(msg.Data, &p); err != nil {
			return nil, malformed(msg.Type, err.Error())
		}
		if p.Type != string(msg.Type) {
			return nil, malformed(msg.Type, fmt.Sprintf("sdp type %q", p.Type))
		}
		if p.SDP == "" {
			return nil, malformed(msg.Type, "missing sdp")
		}
		if msg.Type == MessageTypeOffer {
			return Offer{Header: h, SDP: p.SDP}, nil
		}
		return Answer{Header: h, SDP: p.SDP}, nil

	case MessageTypeICECandidate:
		if h.UID == "" {
			return nil, malformed(msg.Type, "missing sender uid")
		}
		var p CandidatePayload
		if err := decodeRequired(msg.Data, &p); err != nil {
			return nil, malformed(msg.Type, err.Error())
		}
		if p.Candidate == "" {
			return nil, malformed(msg.Type, "missing candidate")
		}
		c := Candidate{Header: h, Candidate: p.Candidate}
		if p.SDPMLineIndex != nil {
			c.SDPMLineIndex = *p.SDPMLineIndex
		}
		if p.SDPMid != nil {
			c.SDPMid = *p.SDPMid
		}
		return c, nil

	case "":
		return nil, malformed(msg.Type, "missing type")

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

func malformed(t MessageType, reason string) error {
	if t == "" {
		return fmt.Errorf("%w: %s", ErrMalformed, reason)
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformed, t, reason)
}

func isEmptyData(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeRequired(data json.RawMessage, v any) error {
	if isEmptyData(data) {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

func decodeOptional(data json.RawMessage, v any) error {
	if isEmptyData(data) {
		return nil
	}
	return json.Unmarshal(data, v)
}
