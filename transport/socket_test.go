package transport_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
	"github.com/outofforest/resonance"
	"github.com/outofforest/tandem/transport"
)

func TestSocket(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	config := resonance.Config{MaxMessageSize: 1024}
	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	receivedCh := make(chan string, 2)
	closedCh := make(chan error, 1)
	group.Spawn("server", parallel.Fail, func(ctx context.Context) error {
		return resonance.RunServer(ctx, ls, config, func(ctx context.Context, c *resonance.Connection) error {
			tr := transport.NewSocket(c)
			for range 2 {
				payload, err := tr.Receive(ctx)
				if err != nil {
					return err
				}
				receivedCh <- string(payload)
			}
			if err := tr.Send(ctx, []byte("ACCEPT")); err != nil {
				return err
			}

			_, err := tr.Receive(ctx)
			closedCh <- err
			return nil
		})
	})

	var reply []byte
	var errEmpty error
	err = resonance.RunClient(ctx, ls.Addr().String(), config, func(ctx context.Context, c *resonance.Connection) error {
		tr := transport.NewSocket(c)
		errEmpty = tr.Send(ctx, nil)
		if err := tr.Send(ctx, []byte("CALLBACK:123")); err != nil {
			return err
		}
		if err := tr.Send(ctx, []byte("DATA:\x00\x01\x02\xff")); err != nil {
			return err
		}
		var err error
		reply, err = tr.Receive(ctx)
		return err
	})
	requireT.NoError(err)
	requireT.Error(errEmpty)

	requireT.Equal("CALLBACK:123", <-receivedCh)
	requireT.Equal("DATA:\x00\x01\x02\xff", <-receivedCh)
	requireT.Equal("ACCEPT", string(reply))
	requireT.Error(<-closedCh)
}
