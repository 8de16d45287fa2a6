package session

import (
	"context"

	"github.com/BioHazard786/meshcall/internal/signaling"
)

// Transport carries signals to and from the signaling server.
// *signaling.Client implements it.
type Transport interface {
	Connect(ctx context.Context, recv signaling.Receiver) error
	Send(s signaling.Signal) error
	Disconnect() error
}

// Dialer returns a fresh, unconnected Transport for one join.
type Dialer func(token string) Transport

var _ Transport = (*signaling.Client)(nil)
