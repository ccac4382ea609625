package tandem

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tandem/link"
	"github.com/outofforest/tandem/transport"
	"github.com/outofforest/tandem/wire"
)

// accept runs the master side of the handshake. Expected is set when the transport was
// created for a particular instance, like the shared memory one.
func (m *Master) accept(
	ctx context.Context,
	tr transport.Transport,
	kind transport.Kind,
	expected *Instance,
) (*Instance, error) {
	timeout := m.config.HandshakeTimeout

	body, err := expect(ctx, tr, timeout, wire.TokenCallback)
	if err != nil {
		return nil, err
	}
	session, err := wire.DecodeCallback(body)
	if err != nil {
		return nil, m.refuse(ctx, tr, errors.Wrap(ErrHandshake, err.Error()))
	}

	inst, exists := m.sessions[session]
	switch {
	case !exists:
		return nil, m.refuse(ctx, tr, errors.Wrapf(ErrHandshake, "unknown session %d", session))
	case expected != nil && inst != expected:
		return nil, m.refuse(ctx, tr, errors.Wrapf(ErrHandshake, "session %d does not belong to this transport", session))
	case inst.config.Transport != kind:
		return nil, m.refuse(ctx, tr, errors.Wrapf(ErrHandshake, "session %d expects %s transport", session, inst.config.Transport))
	case !inst.claimed.CompareAndSwap(false, true):
		return nil, m.refuse(ctx, tr, errors.Wrapf(ErrHandshake, "session %d already connected", session))
	}

	err = func() error {
		if err := send(ctx, tr, wire.TokenAccept.Encode(nil)); err != nil {
			return err
		}
		if _, err := expect(ctx, tr, timeout, wire.TokenSync); err != nil {
			return err
		}

		descriptor := wire.NewSessionDescriptor(inst.session, inst.id, inst.table.Layout(),
			wire.Timestamp(m.now.Load()))
		if err := send(ctx, tr, wire.TokenInstance.Encode(descriptor.Marshal())); err != nil {
			return err
		}
		if _, err := expect(ctx, tr, timeout, wire.TokenAck); err != nil {
			return err
		}

		links := wire.EncodeLinks(inst.msg.Names(), inst.table.Sizes())
		if err := send(ctx, tr, wire.TokenLinks.Encode(links)); err != nil {
			return err
		}
		if _, err := expect(ctx, tr, timeout, wire.TokenAck); err != nil {
			return err
		}

		if err := send(ctx, tr, wire.TokenStart.Encode(nil)); err != nil {
			return err
		}
		_, err := expect(ctx, tr, timeout, wire.TokenOK)
		return err
	}()
	return inst, err
}

// refuse sends the FAIL message and waits for the slave to drop the connection.
func (m *Master) refuse(ctx context.Context, tr transport.Transport, err error) error {
	if errSend := tr.Send(ctx, wire.TokenFail.Encode(reason(err))); errSend == nil {
		linger(ctx, tr)
	}
	return err
}

// handshake runs the slave side of the handshake and returns the linkage table agreed with
// the master together with the staging message sized for it.
func (s *Slave) handshake(ctx context.Context, tr transport.Transport) (*link.Table, *wire.Message, error) {
	log := logger.Get(ctx)
	timeout := s.config.HandshakeTimeout

	if err := send(ctx, tr, wire.EncodeCallback(s.config.Session)); err != nil {
		return nil, nil, err
	}
	if _, err := expect(ctx, tr, timeout, wire.TokenAccept); err != nil {
		return nil, nil, err
	}

	if err := send(ctx, tr, wire.TokenSync.Encode(nil)); err != nil {
		return nil, nil, err
	}
	body, err := expect(ctx, tr, timeout, wire.TokenInstance)
	if err != nil {
		return nil, nil, err
	}
	descriptor, err := wire.UnmarshalSessionDescriptor(body)
	if err != nil {
		return nil, nil, s.refuse(ctx, tr, errors.Wrap(ErrHandshake, err.Error()))
	}
	if descriptor.SessionID != s.config.Session {
		return nil, nil, s.refuse(ctx, tr, errors.Wrapf(ErrHandshake, "descriptor of session %d received",
			descriptor.SessionID))
	}
	msg := wire.NewMessage(descriptor.Layout(), descriptor.InstanceID)
	if err := send(ctx, tr, wire.TokenAck.Encode(nil)); err != nil {
		return nil, nil, err
	}

	body, err = expect(ctx, tr, timeout, wire.TokenLinks)
	if err != nil {
		return nil, nil, err
	}
	names, sizes, err := wire.DecodeLinks(body, int(descriptor.NameSize))
	if err != nil {
		return nil, nil, s.refuse(ctx, tr, errors.Wrap(ErrHandshake, err.Error()))
	}
	table, err := s.bind(names, sizes, descriptor.Layout())
	if err != nil {
		return nil, nil, s.refuse(ctx, tr, errors.Wrap(ErrHandshake, err.Error()))
	}
	if err := msg.SetNames(names); err != nil {
		return nil, nil, s.refuse(ctx, tr, errors.Wrap(ErrHandshake, err.Error()))
	}
	if err := send(ctx, tr, wire.TokenAck.Encode(nil)); err != nil {
		return nil, nil, err
	}

	if _, err := expect(ctx, tr, timeout, wire.TokenStart); err != nil {
		return nil, nil, err
	}
	if err := send(ctx, tr, wire.TokenOK.Encode(nil)); err != nil {
		return nil, nil, err
	}

	log.Info("Session established",
		zap.Uint64("session", uint64(s.config.Session)),
		zap.Uint32("instance", uint32(descriptor.InstanceID)),
		zap.Int("writes", len(table.Writes)),
		zap.Int("reads", len(table.Reads)))
	return table, msg, nil
}

// bind resolves the names received from the master against the local model. Every local value
// must have the size the master uses for it, so both sides agree on the data region offsets.
func (s *Slave) bind(names []byte, sizes []int, layout wire.Layout) (*link.Table, error) {
	writes, reads, err := wire.DecodeNames(names)
	if err != nil {
		return nil, err
	}
	table, err := link.NewTable(writes, reads, s.resolver)
	if err != nil {
		return nil, err
	}
	if table.Layout() != layout {
		return nil, errors.Errorf("local values take %d bytes, master expects %d",
			table.Layout().DataSize, layout.DataSize)
	}

	local := table.Sizes()
	if len(local) != len(sizes) {
		return nil, errors.Errorf("master sent sizes of %d linkages, %d expected", len(sizes), len(local))
	}
	linkages := slices.Concat(table.Writes, table.Reads)
	for i, size := range sizes {
		if local[i] != size {
			return nil, errors.Errorf("linkage %q takes %d bytes locally, master expects %d",
				linkages[i].Name, local[i], size)
		}
	}
	return table, nil
}

func (s *Slave) refuse(ctx context.Context, tr transport.Transport, err error) error {
	_ = tr.Send(ctx, wire.TokenFail.Encode(reason(err)))
	return err
}

func send(ctx context.Context, tr transport.Transport, payload []byte) error {
	if err := tr.Send(ctx, payload); err != nil {
		return errors.Wrapf(ErrHandshake, "sending: %s", err)
	}
	return nil
}
