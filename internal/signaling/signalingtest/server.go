package signalingtest

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"

	"github.com/BioHazard786/meshcall/internal/signaling"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is a Hub served over httptest at /ws.
type Server struct {
	hub *Hub
	srv *httptest.Server
}

// NewServer starts a hub and an HTTP server in front of it.
func NewServer() *Server {
	hub := NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", serveWs(hub))

	return &Server{hub: hub, srv: httptest.NewServer(mux)}
}

func serveWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := &conn{
			hub:           hub,
			ws:            ws,
			send:          make(chan []byte, 256),
			authorization: r.Header.Get("Authorization"),
		}

		select {
		case hub.register <- c:
		case <-hub.quit:
			ws.Close()
			return
		}

		go c.writePump()
		go c.readPump()
	}
}

// URL is the WebSocket endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

// Close stops the hub and the HTTP server.
func (s *Server) Close() {
	s.hub.Stop()
	s.srv.CloseClientConnections()
	s.srv.Close()
}

// Records returns every message received so far, in arrival order.
func (s *Server) Records() []Record {
	var out []Record
	s.hub.do(func() { out = slices.Clone(s.hub.records) })
	return out
}

// Received returns the messages of type t sent by uid.
func (s *Server) Received(uid string, t signaling.MessageType) []signaling.Message {
	var out []signaling.Message
	for _, r := range s.Records() {
		if r.Message.UID == uid && r.Message.Type == t {
			out = append(out, r.Message)
		}
	}
	return out
}

// Members lists the uids in channelID in join order.
func (s *Server) Members(channelID string) []string {
	var out []string
	s.hub.do(func() {
		for _, c := range s.hub.channels[channelID] {
			out = append(out, c.uid)
		}
	})
	return out
}

// Inject writes a raw frame to the connection that joined as uid. It reports
// whether such a connection exists.
func (s *Server) Inject(uid string, raw []byte) bool {
	found := false
	s.hub.do(func() {
		if c := s.hub.member(uid); c != nil {
			found = true
			s.hub.send(c, raw)
		}
	})
	return found
}

// Drop closes uid's connection abruptly, as a network failure would.
func (s *Server) Drop(uid string) bool {
	var c *conn
	s.hub.do(func() { c = s.hub.member(uid) })
	if c == nil {
		return false
	}
	c.ws.UnderlyingConn().Close()
	return true
}
