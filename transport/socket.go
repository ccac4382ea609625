package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/resonance"
)

var _ Transport = &SocketTransport{}

// SocketTransport carries messages over a resonance connection.
type SocketTransport struct {
	c         *resonance.Connection
	closeOnce sync.Once
}

// NewSocket wraps the connection.
func NewSocket(c *resonance.Connection) *SocketTransport {
	return &SocketTransport{c: c}
}

// Send sends the message in a single length-prefixed frame.
func (s *SocketTransport) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	if len(payload) == 0 {
		return errors.New("empty message")
	}
	return s.c.SendBytes(payload)
}

// Receive receives the next frame.
func (s *SocketTransport) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	b, err := s.c.ReceiveBytes()
	if err != nil {
		return nil, err
	}
	payload := make([]byte, len(b))
	copy(payload, b)
	return payload, nil
}

// Close closes the connection.
func (s *SocketTransport) Close() error {
	s.closeOnce.Do(func() {
		s.c.Close()
	})
	return nil
}
