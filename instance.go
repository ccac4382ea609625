package tandem

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/tandem/barrier"
	"github.com/outofforest/tandem/link"
	"github.com/outofforest/tandem/transport"
	"github.com/outofforest/tandem/wire"
)

// InstanceConfig declares one slave instance.
type InstanceConfig struct {
	// Launcher is the address of the remote launcher starting the slave. Empty means the slave
	// is started by other means and calls back on its own.
	Launcher string

	// Model identifies the sub-model the slave runs.
	Model string

	// Transport selects the transport carrying the session.
	Transport transport.Kind

	// Session is the session id. Zero means a random one is generated.
	Session wire.SessionID

	// Flags are passed to the slave by the launcher.
	Flags string

	// Writes are the names of the properties sent to the slave.
	Writes []string

	// Reads are the names of the properties received from the slave.
	Reads []string
}

// arrival is what the worker hands over to the driver after a slave completes its step.
type arrival struct {
	payload []byte
	done    bool
}

// Instance is one slave as seen by the master.
type Instance struct {
	config  InstanceConfig
	id      wire.InstanceID
	session wire.SessionID
	table   *link.Table
	msg     *wire.Message

	arrivals  *barrier.Barrier[arrival]
	connected chan struct{}
	failed    chan struct{}
	failOnce  sync.Once
	err       error

	claimed atomic.Bool
	exited  atomic.Bool
	counted bool

	mu sync.RWMutex
	tr transport.Transport
}

func newInstance(config InstanceConfig, id wire.InstanceID) *Instance {
	return &Instance{
		config:    config,
		id:        id,
		session:   config.Session,
		arrivals:  barrier.New[arrival](2),
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
	}
}

// ID returns the instance id.
func (inst *Instance) ID() wire.InstanceID {
	return inst.id
}

// Session returns the session id the slave must present when calling back.
func (inst *Instance) Session() wire.SessionID {
	return inst.session
}

// Config returns the config of the instance.
func (inst *Instance) Config() InstanceConfig {
	return inst.config
}

// Table returns the linkages of the instance. It is nil before Master.Init.
func (inst *Instance) Table() *link.Table {
	return inst.table
}

// Exited reports whether the instance finished or failed.
func (inst *Instance) Exited() bool {
	return inst.exited.Load()
}

// Err returns the failure cause, nil if the instance has not failed.
func (inst *Instance) Err() error {
	select {
	case <-inst.failed:
		return inst.err
	default:
		return nil
	}
}

func (inst *Instance) logFields() []zap.Field {
	return []zap.Field{
		zap.Uint32("instance", uint32(inst.id)),
		zap.String("host", inst.config.Launcher),
		zap.String("model", inst.config.Model),
	}
}

func (inst *Instance) attach(tr transport.Transport) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.tr = tr
	close(inst.connected)
}

func (inst *Instance) send(ctx context.Context, payload []byte) error {
	inst.mu.RLock()
	defer inst.mu.RUnlock()

	if inst.tr == nil {
		return errors.New("instance is not connected")
	}
	return inst.tr.Send(ctx, payload)
}

// fail records the cause, marks the instance exited and releases the driver and the transport.
func (inst *Instance) fail(err error) {
	inst.failOnce.Do(func() {
		inst.err = err
		inst.exited.Store(true)
		close(inst.failed)
		inst.arrivals.Close()

		inst.mu.RLock()
		defer inst.mu.RUnlock()

		if inst.tr != nil {
			_ = inst.tr.Close()
		}
	})
}

// receive runs the worker loop handing slave messages over to the driver.
func (inst *Instance) receive(ctx context.Context, log *zap.Logger, tr transport.Transport) error {
	for {
		payload, err := tr.Receive(ctx)
		if err != nil {
			return errors.Wrapf(ErrTransport, "receiving: %s", err)
		}

		token, body, err := wire.ParseToken(payload)
		if err != nil {
			log.Info("Slave message", append(inst.logFields(), zap.ByteString("text", payload))...)
			continue
		}

		switch token {
		case wire.TokenData:
			if err := inst.arrivals.Signal(ctx, arrival{payload: body}); err != nil {
				return err
			}
		case wire.TokenDone:
			inst.exited.Store(true)
			return inst.arrivals.Signal(ctx, arrival{payload: body, done: true})
		case wire.TokenError:
			return errors.Wrapf(ErrTransport, "slave reported error: %s", body)
		default:
			return errors.Wrapf(ErrTransport, "unexpected %s", token)
		}
	}
}
