package tandem

import (
	"github.com/pkg/errors"

	"github.com/outofforest/tandem/barrier"
	"github.com/outofforest/tandem/transport"
)

var (
	// ErrConfig is returned when the topology cannot be set up.
	ErrConfig = errors.New("invalid configuration")

	// ErrHandshake is returned when the session cannot be established.
	ErrHandshake = errors.New("handshake failed")

	// ErrTransport is returned when an established session breaks.
	ErrTransport = errors.New("transport failed")

	// ErrInstanceExited is returned by a step issued after any instance has exited.
	ErrInstanceExited = errors.New("instance exited")

	errMasterClosed = errors.New("master closed")
)

// Exit statuses of the processes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitHandshake = 2
	ExitTransport = 3
)

// ExitCode maps the error returned by a driver to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrHandshake):
		return ExitHandshake
	case errors.Is(err, ErrTransport), errors.Is(err, transport.ErrTimeout), errors.Is(err, barrier.ErrTimeout):
		return ExitTransport
	default:
		return ExitFailure
	}
}
