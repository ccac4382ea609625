package transport

import (
	"context"

	"github.com/pkg/errors"
)

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=transport

var (
	// ErrUnsupported is returned when the transport is not available on this platform.
	ErrUnsupported = errors.New("transport not supported on this platform")

	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport closed")

	// ErrTimeout is returned when the peer does not signal within the configured time.
	ErrTimeout = errors.New("transport wait timed out")
)

// Kind selects the transport of an instance.
type Kind string

const (
	// Socket is the TCP transport.
	Socket Kind = "socket"

	// SharedMemory is the shared memory segment transport.
	SharedMemory Kind = "shm"
)

// ParseKind converts the configured name into Kind. Empty name selects Socket.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", Socket:
		return Socket, nil
	case SharedMemory:
		return SharedMemory, nil
	default:
		return "", errors.Errorf("unknown transport %q", s)
	}
}

// Transport carries whole messages between master and slave.
type Transport interface {
	// Send transmits one message.
	Send(ctx context.Context, payload []byte) error

	// Receive blocks until the next message arrives. The returned slice is owned by the caller.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the transport and unblocks pending operations.
	Close() error
}
