package transport_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
	"github.com/outofforest/tandem/transport"
)

func TestPipe(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	a, b := transport.Pipe()

	payload := []byte("SYNC")
	requireT.NoError(a.Send(ctx, payload))
	payload[0] = 'X'

	received, err := b.Receive(ctx)
	requireT.NoError(err)
	requireT.Equal("SYNC", string(received))

	requireT.NoError(b.Send(ctx, []byte("ACK")))
	received, err = a.Receive(ctx)
	requireT.NoError(err)
	requireT.Equal("ACK", string(received))
}

func TestPipeClose(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	a, b := transport.Pipe()
	requireT.NoError(a.Send(ctx, []byte("DONE:")))
	requireT.NoError(a.Close())
	requireT.NoError(b.Close())

	// Queued messages are still delivered after close.
	received, err := b.Receive(ctx)
	requireT.NoError(err)
	requireT.Equal("DONE:", string(received))

	_, err = b.Receive(ctx)
	requireT.True(errors.Is(err, transport.ErrClosed))
	requireT.True(errors.Is(a.Send(ctx, []byte("x")), transport.ErrClosed))
}

func TestPipeContext(t *testing.T) {
	requireT := require.New(t)

	a, _ := transport.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Receive(ctx)
	requireT.True(errors.Is(err, context.Canceled))
}

func TestParseKind(t *testing.T) {
	requireT := require.New(t)

	k, err := transport.ParseKind("")
	requireT.NoError(err)
	requireT.Equal(transport.Socket, k)

	k, err = transport.ParseKind("shm")
	requireT.NoError(err)
	requireT.Equal(transport.SharedMemory, k)

	_, err = transport.ParseKind("carrier-pigeon")
	requireT.Error(err)
}
