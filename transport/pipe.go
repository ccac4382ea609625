package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var _ Transport = &PipeTransport{}

// PipeTransport is one end of an in-process transport.
type PipeTransport struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}

	closeOnce *sync.Once
}

// Pipe returns two connected in-process transports.
func Pipe() (*PipeTransport, *PipeTransport) {
	ab := make(chan []byte, 1)
	ba := make(chan []byte, 1)
	done := make(chan struct{})
	closeOnce := &sync.Once{}

	return &PipeTransport{in: ba, out: ab, done: done, closeOnce: closeOnce},
		&PipeTransport{in: ab, out: ba, done: done, closeOnce: closeOnce}
}

// Send sends the message.
func (p *PipeTransport) Send(ctx context.Context, payload []byte) error {
	select {
	case <-p.done:
		return errors.WithStack(ErrClosed)
	default:
	}

	msg := make([]byte, len(payload))
	copy(msg, payload)

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-p.done:
		return errors.WithStack(ErrClosed)
	case p.out <- msg:
		return nil
	}
}

// Receive receives the message.
func (p *PipeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}

	select {
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	case <-p.done:
		return nil, errors.WithStack(ErrClosed)
	case msg := <-p.in:
		return msg, nil
	}
}

// Close closes both ends.
func (p *PipeTransport) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}
