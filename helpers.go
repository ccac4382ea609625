package tandem

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/tandem/transport"
	"github.com/outofforest/tandem/wire"
)

const (
	// defaultMaxMessageSize fits the largest message a uint16 layout can describe.
	defaultMaxMessageSize = 128 * 1024

	// maxReasonSize bounds the text carried by FAIL and ERROR messages.
	maxReasonSize = 256

	// lingerTimeout bounds waiting for the peer to close after the last message.
	lingerTimeout = time.Second
)

func sessionID() (wire.SessionID, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	return wire.SessionID(binary.LittleEndian.Uint64(b[:])), nil
}

// receiveWithin receives the next message. The transport is closed if nothing arrives in time
// or the context is canceled, so blocking transports are released too.
func receiveWithin(ctx context.Context, tr transport.Transport, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stop := context.AfterFunc(ctx, func() {
		_ = tr.Close()
	})
	payload, err := tr.Receive(ctx)
	if !stop() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(transport.ErrTimeout, "nothing received within %s", timeout)
		}
		return nil, errors.WithStack(ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// expect receives the next message and checks its token.
func expect(ctx context.Context, tr transport.Transport, timeout time.Duration, token wire.Token) ([]byte, error) {
	payload, err := receiveWithin(ctx, tr, timeout)
	if err != nil {
		return nil, errors.Wrapf(ErrHandshake, "waiting for %s: %s", token, err)
	}
	t, body, err := wire.ParseToken(payload)
	if err != nil {
		return nil, errors.Wrapf(ErrHandshake, "waiting for %s: %s", token, err)
	}
	if t == wire.TokenFail {
		return nil, errors.Wrapf(ErrHandshake, "peer refused: %s", body)
	}
	if t != token {
		return nil, errors.Wrapf(ErrHandshake, "%s expected, got %s", token, t)
	}
	return body, nil
}

func reason(err error) []byte {
	b := []byte(err.Error())
	if len(b) > maxReasonSize {
		b = b[:maxReasonSize]
	}
	return b
}

// linger waits until the peer closes the session or the linger timeout passes.
func linger(ctx context.Context, tr transport.Transport) {
	_, _ = receiveWithin(ctx, tr, lingerTimeout)
}
