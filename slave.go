package tandem

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
	"github.com/outofforest/tandem/barrier"
	"github.com/outofforest/tandem/link"
	"github.com/outofforest/tandem/transport"
	"github.com/outofforest/tandem/wire"
)

// Scheduler advances the local model of the slave.
type Scheduler interface {
	// Advance runs the model up to the time and returns the earliest time it needs to run again.
	Advance(ctx context.Context, until wire.Timestamp) (wire.Timestamp, error)
}

// HardEventReporter is implemented by schedulers signalling discontinuities of their state.
type HardEventReporter interface {
	HardEvent() bool
}

// SlaveConfig is the config of slave.
type SlaveConfig struct {
	// Master is the callback address of the master.
	Master string

	// Transport selects the transport of the session.
	Transport transport.Kind

	// Session is the session id assigned by the master.
	Session wire.SessionID

	// SharedMemoryDir is the directory holding shared memory segments.
	SharedMemoryDir string

	// Timeout bounds waiting for the next message of the master. Zero waits without limit.
	Timeout time.Duration

	// HandshakeTimeout bounds every handshake exchange.
	HandshakeTimeout time.Duration

	// MaxMessageSize is the maximum size of a socket message.
	MaxMessageSize uint64
}

// Slave runs the local model in lock-step with the master.
type Slave struct {
	config    SlaveConfig
	resolver  link.Resolver
	scheduler Scheduler
}

// NewSlave creates new slave.
func NewSlave(config SlaveConfig, resolver link.Resolver, scheduler Scheduler) *Slave {
	if config.Transport == "" {
		config.Transport = transport.Socket
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = defaultMaxMessageSize
	}
	return &Slave{
		config:    config,
		resolver:  resolver,
		scheduler: scheduler,
	}
}

// Run connects to the master and runs the session until the master finishes the simulation.
func (s *Slave) Run(ctx context.Context) error {
	switch s.config.Transport {
	case transport.Socket:
		var started bool
		var result error
		err := resonance.RunClient(ctx, s.config.Master, resonance.Config{MaxMessageSize: s.config.MaxMessageSize},
			func(ctx context.Context, c *resonance.Connection) error {
				started = true
				result = s.session(ctx, transport.NewSocket(c))
				return result
			})
		if started {
			return result
		}
		return errors.Wrapf(ErrHandshake, "connecting to master %s: %s", s.config.Master, err)
	case transport.SharedMemory:
		tr, err := s.openSharedMemory(ctx)
		if err != nil {
			return err
		}
		defer tr.Close()

		return s.session(ctx, tr)
	default:
		return errors.Wrapf(ErrConfig, "unknown transport %q", s.config.Transport)
	}
}

// openSharedMemory attaches to the segment, waiting for the master to create it.
func (s *Slave) openSharedMemory(ctx context.Context) (transport.Transport, error) {
	config := transport.SharedMemoryConfig{
		Dir:  s.config.SharedMemoryDir,
		Name: transport.SharedMemoryName(uint64(s.config.Session)),
	}

	var timeoutCh <-chan time.Time
	if s.config.HandshakeTimeout > 0 {
		timer := time.NewTimer(s.config.HandshakeTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		tr, err := transport.OpenSharedMemory(config)
		switch {
		case err == nil:
			return tr, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, errors.Wrapf(ErrHandshake, "opening shared memory: %s", err)
		}

		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-timeoutCh:
			return nil, errors.Wrapf(ErrHandshake, "shared memory %s not created within %s",
				config.Name, s.config.HandshakeTimeout)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (s *Slave) session(ctx context.Context, tr transport.Transport) error {
	table, msg, err := s.handshake(ctx, tr)
	reportHandshake("slave", err)
	if err != nil {
		return err
	}

	return s.loop(ctx, tr, table, msg)
}

type inbound struct {
	payload []byte
	err     error
}

type outcome struct {
	next wire.Timestamp
	err  error
}

// loop runs three tasks: receiver feeding messages of the master, local advancing the model
// and the driver passing the step between them.
func (s *Slave) loop(ctx context.Context, tr transport.Transport, table *link.Table, msg *wire.Message) error {
	inbox := barrier.New[inbound](1)
	requests := barrier.New[wire.Timestamp](1)
	results := barrier.New[outcome](1)

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		context.AfterFunc(ctx, func() {
			inbox.Close()
			requests.Close()
			results.Close()
			_ = tr.Close()
		})

		spawn("receiver", parallel.Continue, func(ctx context.Context) error {
			for {
				payload, err := tr.Receive(ctx)
				if errSignal := inbox.Signal(ctx, inbound{payload: payload, err: err}); errSignal != nil || err != nil {
					return nil
				}
			}
		})
		spawn("local", parallel.Continue, func(ctx context.Context) error {
			for {
				until, err := requests.Wait(ctx, 0)
				if err != nil {
					return nil
				}
				next, err := s.scheduler.Advance(ctx, until)
				if err := results.Signal(ctx, outcome{next: next, err: err}); err != nil {
					return nil
				}
			}
		})
		spawn("driver", parallel.Exit, func(ctx context.Context) error {
			return s.drive(ctx, tr, table, msg, inbox, requests, results)
		})

		return nil
	})
}

func (s *Slave) drive(
	ctx context.Context,
	tr transport.Transport,
	table *link.Table,
	msg *wire.Message,
	inbox *barrier.Barrier[inbound],
	requests *barrier.Barrier[wire.Timestamp],
	results *barrier.Barrier[outcome],
) error {
	log := logger.Get(ctx)

	for {
		in, err := inbox.Wait(ctx, s.config.Timeout)
		if err != nil {
			return errors.Wrapf(ErrTransport, "waiting for master: %s", err)
		}
		if in.err != nil {
			return errors.Wrapf(ErrTransport, "receiving: %s", in.err)
		}

		token, body, err := wire.ParseToken(in.payload)
		if err != nil {
			return errors.Wrap(ErrTransport, err.Error())
		}
		if token != wire.TokenData {
			return errors.Wrapf(ErrTransport, "%s expected, got %s", wire.TokenData, token)
		}
		if err := msg.UnmarshalData(body); err != nil {
			return s.report(ctx, tr, errors.Wrap(ErrTransport, err.Error()))
		}
		table.Decode(link.MasterToSlave, msg.Data())

		t1 := msg.Header().Timestamp
		if t1 == wire.Never {
			table.Encode(link.SlaveToMaster, msg.Data())
			msg.Stamp(wire.Never, false)
			if err := tr.Send(ctx, msg.AppendData([]byte(wire.TokenDone))); err != nil {
				return errors.Wrapf(ErrTransport, "sending: %s", err)
			}
			log.Info("Simulation finished")

			// Master closes the socket after reading the final message.
			if s.config.Transport == transport.Socket {
				_, _ = inbox.Wait(ctx, lingerTimeout)
			}
			return nil
		}

		if err := requests.Signal(ctx, t1); err != nil {
			return err
		}
		out, err := results.Wait(ctx, 0)
		if err != nil {
			return err
		}
		if out.err != nil {
			log.Error("Local model failed", zap.Int64("time", int64(t1)), zap.Error(out.err))
			return s.report(ctx, tr, errors.Wrapf(out.err, "advancing to %s", t1))
		}

		table.Encode(link.SlaveToMaster, msg.Data())
		msg.Stamp(out.next, s.hardEvent())
		if err := tr.Send(ctx, msg.AppendData([]byte(wire.TokenData))); err != nil {
			return errors.Wrapf(ErrTransport, "sending: %s", err)
		}
		slaveSteps.Inc()
	}
}

// report tells the master the slave is giving up.
func (s *Slave) report(ctx context.Context, tr transport.Transport, err error) error {
	_ = tr.Send(ctx, wire.TokenError.Encode(reason(err)))
	return err
}

func (s *Slave) hardEvent() bool {
	if r, ok := s.scheduler.(HardEventReporter); ok {
		return r.HardEvent()
	}
	return false
}
