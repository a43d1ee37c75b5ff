// Package concentrator defines the surface of the radio concentrator the
// gateway services consume, together with a software simulator used when no
// radio hardware is attached.
package concentrator

import (
	"errors"

	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

var (
	// ErrNotStarted is returned by operations that need a running
	// concentrator.
	ErrNotStarted = errors.New("concentrator is not started")
	// ErrAlreadyStarted is returned by Start on a running concentrator.
	ErrAlreadyStarted = errors.New("concentrator is already started")
)

// Client is the capability set of a radio concentrator. Receive is
// non-blocking and returns between zero and max packets per call; the
// concentrator offers no wait primitive, so consumers poll. A Receive error
// indicates an unrecoverable driver state.
type Client interface {
	Start() error
	Stop() error
	Receive(max int) ([]datamodel.RXPacket, error)
	Send(pkt datamodel.TXPacket) error
	TXStatus() (datamodel.TXStatus, error)
}
