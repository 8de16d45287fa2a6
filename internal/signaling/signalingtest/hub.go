// Package signalingtest runs an in-process signaling server for tests. It
// implements the channel membership and relay behaviour the engine expects
// and records every message it receives.
package signalingtest

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/BioHazard786/meshcall/internal/signaling"
)

type inbound struct {
	from *conn
	msg  signaling.Message
	raw  []byte
}

// Record is one message received by the hub.
type Record struct {
	Authorization string
	Message       signaling.Message
}

// Hub owns all channels and connections. Its state is only touched by Run.
type Hub struct {
	channels map[string][]*conn
	conns    map[*conn]struct{}
	records  []Record

	register   chan *conn
	unregister chan *conn
	broadcast  chan *inbound
	exec       chan func()
	quit       chan struct{}
}

// NewHub creates a Hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		channels:   make(map[string][]*conn),
		conns:      make(map[*conn]struct{}),
		register:   make(chan *conn),
		unregister: make(chan *conn),
		broadcast:  make(chan *inbound),
		exec:       make(chan func()),
		quit:       make(chan struct{}),
	}
}

// Run processes registrations and messages until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.conns[c] = struct{}{}

		case c := <-h.unregister:
			if _, ok := h.conns[c]; !ok {
				continue
			}
			h.removeMember(c)
			delete(h.conns, c)
			close(c.send)

		case in := <-h.broadcast:
			h.records = append(h.records, Record{Authorization: in.from.authorization, Message: in.msg})
			h.handle(in)

		case fn := <-h.exec:
			fn()

		case <-h.quit:
			for c := range h.conns {
				close(c.send)
			}
			h.conns = map[*conn]struct{}{}
			return
		}
	}
}

// Stop terminates Run and closes every connection.
func (h *Hub) Stop() {
	close(h.quit)
}

// do runs fn on the hub loop and waits for it.
func (h *Hub) do(fn func()) {
	done := make(chan struct{})
	select {
	case h.exec <- func() { fn(); close(done) }:
		<-done
	case <-h.quit:
	}
}

func (h *Hub) handle(in *inbound) {
	c, msg := in.from, in.msg

	switch msg.Type {
	case signaling.MessageTypeJoin:
		if msg.UID == "" || msg.ChannelID == "" {
			slog.Debug("signalingtest: join without uid or channel")
			return
		}
		h.removeMember(c)
		c.uid, c.channelID = msg.UID, msg.ChannelID

		members := h.channels[c.channelID]
		users := make([]string, 0, len(members)+1)
		for _, m := range members {
			users = append(users, m.uid)
		}
		users = append(users, c.uid)
		h.channels[c.channelID] = append(members, c)

		list, _ := json.Marshal(signaling.UserListPayload{Users: users})
		h.deliver(c, signaling.Message{
			Type:      signaling.MessageTypeUserList,
			ChannelID: c.channelID,
			Data:      list,
		})
		for _, m := range members {
			h.deliver(m, signaling.Message{
				Type:      signaling.MessageTypeUserJoined,
				ChannelID: c.channelID,
				UID:       c.uid,
			})
		}

	case signaling.MessageTypeLeave:
		h.removeMember(c)

	case signaling.MessageTypeOffer, signaling.MessageTypeAnswer, signaling.MessageTypeICECandidate:
		if c.channelID == "" {
			slog.Debug("signalingtest: relay from a connection that has not joined")
			return
		}
		for _, m := range h.channels[c.channelID] {
			if m == c {
				continue
			}
			if msg.ToUID != "" && m.uid != msg.ToUID {
				continue
			}
			h.send(m, in.raw)
		}

	default:
		slog.Debug("signalingtest: unknown message type", "type", msg.Type)
	}
}

// removeMember takes c out of its channel and tells the others.
func (h *Hub) removeMember(c *conn) {
	if c.channelID == "" {
		return
	}
	channelID, uid := c.channelID, c.uid
	c.channelID, c.uid = "", ""

	members := slices.DeleteFunc(h.channels[channelID], func(m *conn) bool { return m == c })
	if len(members) == 0 {
		delete(h.channels, channelID)
		return
	}
	h.channels[channelID] = members

	for _, m := range members {
		h.deliver(m, signaling.Message{
			Type:      signaling.MessageTypeUserLeft,
			ChannelID: channelID,
			UID:       uid,
		})
	}
}

func (h *Hub) deliver(c *conn, msg signaling.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Debug("signalingtest: marshal failed", "error", err)
		return
	}
	h.send(c, data)
}

func (h *Hub) send(c *conn, data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Debug("signalingtest: send buffer full, dropping frame", "uid", c.uid)
	}
}

func (h *Hub) member(uid string) *conn {
	for c := range h.conns {
		if c.uid == uid {
			return c
		}
	}
	return nil
}
