package signaling

import (
	"context"
	"errors"
	"log/slog"
)

// Receiver consumes what a transport reads off the wire. OnSignal is called
// one message at a time in arrival order.
type Receiver interface {
	OnSignal(Signal)
	OnTransportError(error)
}

// ReceiverFuncs adapts plain functions to a Receiver. Nil fields are ignored.
type ReceiverFuncs struct {
	Signal         func(Signal)
	TransportError func(error)
}

func (r ReceiverFuncs) OnSignal(s Signal) {
	if r.Signal != nil {
		r.Signal(s)
	}
}

func (r ReceiverFuncs) OnTransportError(err error) {
	if r.TransportError != nil {
		r.TransportError(err)
	}
}

// handleFrame decodes one text frame and hands it to recv. Frames that do not
// decode are logged and dropped.
func handleFrame(logger *slog.Logger, recv Receiver, data []byte) {
	sig, err := Decode(data)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrUnknownType) {
			level = slog.LevelDebug
		}
		logger.Log(context.Background(), level, "dropping signaling frame", "error", err, "size", len(data))
		return
	}
	recv.OnSignal(sig)
}
