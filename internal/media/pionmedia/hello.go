package pionmedia

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MetaChannelLabel is the negotiated data channel both sides open on id 0.
const (
	MetaChannelLabel = "meta"
	metaChannelID    = uint16(0)
)

// Hello identifies a participant once the meta channel opens.
type Hello struct {
	UID     string `msgpack:"uid"`
	Client  string `msgpack:"client"`
	Version string `msgpack:"version"`
}

var errBadHello = errors.New("invalid hello")

func encodeHello(h Hello) ([]byte, error) {
	return msgpack.Marshal(h)
}

func decodeHello(data []byte) (Hello, error) {
	var h Hello
	if err := msgpack.Unmarshal(data, &h); err != nil {
		return Hello{}, fmt.Errorf("%w: %v", errBadHello, err)
	}
	if h.UID == "" {
		return Hello{}, fmt.Errorf("%w: missing uid", errBadHello)
	}
	return h, nil
}
