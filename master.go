package tandem

import (
	"context"
	"net"
	"sync/atomic"
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

// MasterConfig is the config of master.
type MasterConfig struct {
	// Advertise is the address slaves call back to. The listener address is used if empty.
	Advertise string

	// Timeout bounds waiting for all the slaves to complete one step. The deadline is shared by
	// the instances rather than restarted for each of them. Zero waits without limit.
	Timeout time.Duration

	// HandshakeTimeout bounds waiting for a slave to call back and every handshake exchange.
	HandshakeTimeout time.Duration

	// MaxMessageSize is the maximum size of a socket message. Derived from the layouts if zero.
	MaxMessageSize uint64

	// SharedMemoryDir is the directory holding shared memory segments.
	SharedMemoryDir string
}

// Master drives the slave instances in lock-step.
type Master struct {
	config   MasterConfig
	resolver link.Resolver

	instances      []*Instance
	sessions       map[wire.SessionID]*Instance
	initialized    bool
	maxMessageSize uint64
	slotSize       int

	now        atomic.Int64
	ready      bool
	exited     int
	hardEvents int
}

// NewMaster creates new master resolving linkage names against the local model.
func NewMaster(config MasterConfig, resolver link.Resolver) *Master {
	return &Master{
		config:   config,
		resolver: resolver,
		sessions: map[wire.SessionID]*Instance{},
	}
}

// AddInstance declares a slave instance. Instances must be added before Init.
func (m *Master) AddInstance(config InstanceConfig) (*Instance, error) {
	if m.initialized {
		return nil, errors.Wrap(ErrConfig, "instances must be added before init")
	}
	if config.Transport == "" {
		config.Transport = transport.Socket
	}
	if _, err := transport.ParseKind(string(config.Transport)); err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	inst := newInstance(config, wire.InstanceID(len(m.instances)))
	m.instances = append(m.instances, inst)
	return inst, nil
}

// Instances returns the declared instances.
func (m *Master) Instances() []*Instance {
	return m.instances
}

// Init resolves the linkages, computes the message layouts and assigns session ids.
func (m *Master) Init() error {
	if m.initialized {
		return errors.Wrap(ErrConfig, "master already initialized")
	}

	for _, inst := range m.instances {
		table, err := link.NewTable(inst.config.Writes, inst.config.Reads, m.resolver)
		if err != nil {
			return errors.Wrapf(err, "instance %d", inst.id)
		}
		inst.table = table
		inst.msg = wire.NewMessage(table.Layout(), inst.id)
		if err := inst.msg.SetNames(table.Names()); err != nil {
			return err
		}

		if inst.session == 0 {
			for inst.session == 0 || m.sessions[inst.session] != nil {
				if inst.session, err = sessionID(); err != nil {
					return err
				}
			}
		} else if _, exists := m.sessions[inst.session]; exists {
			return errors.Wrapf(ErrConfig, "session %d used by more than one instance", inst.session)
		}
		m.sessions[inst.session] = inst

		if size := messageSize(table); size > m.slotSize {
			m.slotSize = size
		}
	}

	m.maxMessageSize = m.config.MaxMessageSize
	if m.maxMessageSize == 0 {
		m.maxMessageSize = max(uint64(m.slotSize), defaultMaxMessageSize)
	}
	m.initialized = true
	return nil
}

// Run accepts slave sessions and launches the slaves configured with a launcher.
// Failures of individual instances are reported by Step.
func (m *Master) Run(ctx context.Context, ls net.Listener) error {
	if !m.initialized {
		return errors.Wrap(ErrConfig, "master not initialized")
	}

	advertise := m.config.Advertise
	if advertise == "" {
		advertise = ls.Addr().String()
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			return resonance.RunServer(ctx, ls, resonance.Config{MaxMessageSize: m.maxMessageSize},
				func(ctx context.Context, c *resonance.Connection) error {
					m.serve(ctx, transport.NewSocket(c), transport.Socket, nil)
					return nil
				})
		})

		for _, inst := range m.instances {
			if inst.config.Transport == transport.SharedMemory {
				tr, err := transport.CreateSharedMemory(transport.SharedMemoryConfig{
					Dir:      m.config.SharedMemoryDir,
					Name:     transport.SharedMemoryName(uint64(inst.session)),
					SlotSize: m.slotSize,
				})
				if err != nil {
					inst.fail(errors.Wrapf(ErrTransport, "creating shared memory: %s", err))
					continue
				}
				spawn("shm", parallel.Continue, func(ctx context.Context) error {
					defer tr.Close()

					m.serve(ctx, tr, transport.SharedMemory, inst)
					return nil
				})
			}

			if inst.config.Launcher != "" {
				spawn("launch", parallel.Continue, func(ctx context.Context) error {
					if err := m.launch(ctx, inst, advertise); err != nil {
						logger.Get(ctx).Error("Launching slave failed", append(inst.logFields(), zap.Error(err))...)
						inst.fail(err)
					}
					return nil
				})
			}
		}

		return nil
	})
}

// serve establishes the session on the transport and runs the worker of the instance.
func (m *Master) serve(ctx context.Context, tr transport.Transport, kind transport.Kind, expected *Instance) {
	log := logger.Get(ctx)

	inst, err := m.accept(ctx, tr, kind, expected)
	reportHandshake("master", err)
	if inst == nil {
		inst = expected
	}
	if err != nil {
		if inst != nil {
			log.Error("Handshake failed", append(inst.logFields(), zap.Error(err))...)
			inst.fail(err)
			return
		}
		log.Warn("Connection refused", zap.Error(err))
		return
	}

	log.Info("Slave connected", append(inst.logFields(), zap.Uint64("session", uint64(inst.session)))...)
	inst.attach(tr)

	if err := inst.receive(ctx, log, tr); err != nil {
		log.Error("Slave session failed", append(inst.logFields(), zap.Error(err))...)
		inst.fail(err)
	}
}

// Ready waits until every instance has completed its handshake.
func (m *Master) Ready(ctx context.Context) error {
	if m.ready {
		return nil
	}
	if !m.initialized {
		return errors.Wrap(ErrConfig, "master not initialized")
	}

	var timeoutCh <-chan time.Time
	if m.config.HandshakeTimeout > 0 {
		timer := time.NewTimer(m.config.HandshakeTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for _, inst := range m.instances {
		select {
		case <-inst.failed:
			return errors.Wrapf(inst.Err(), "instance %d", inst.id)
		default:
		}

		select {
		case <-inst.connected:
		case <-inst.failed:
			return errors.Wrapf(inst.Err(), "instance %d", inst.id)
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-timeoutCh:
			err := errors.Wrapf(ErrHandshake, "instance %d did not call back within %s",
				inst.id, m.config.HandshakeTimeout)
			inst.fail(err)
			return err
		}
	}

	m.ready = true
	return nil
}

// Step advances all the instances to t1 and returns the earliest time any of them
// needs to be stepped again.
func (m *Master) Step(ctx context.Context, t1 wire.Timestamp) (wire.Timestamp, error) {
	if len(m.instances) == 0 {
		return wire.Never, nil
	}

	next, err := m.step(ctx, t1)
	if err != nil {
		return wire.Invalid, err
	}
	masterSteps.Inc()
	return next, nil
}

// Finish runs the final step telling all the slaves to exit.
func (m *Master) Finish(ctx context.Context) error {
	_, err := m.Step(ctx, wire.Never)
	return err
}

// HardEvents returns the number of hard events reported during the last step.
func (m *Master) HardEvents() int {
	return m.hardEvents
}

// Close releases all the instances.
func (m *Master) Close() {
	for _, inst := range m.instances {
		inst.fail(errors.WithStack(errMasterClosed))
	}
}

func (m *Master) step(ctx context.Context, t1 wire.Timestamp) (wire.Timestamp, error) {
	if m.collectExits() > 0 {
		reportStepFailure("exited")
		return wire.Invalid, errors.Wrapf(ErrInstanceExited, "%d of %d instances exited", m.exited, len(m.instances))
	}
	if err := m.Ready(ctx); err != nil {
		reportStepFailure("handshake")
		return wire.Invalid, err
	}

	m.now.Store(int64(t1))
	m.hardEvents = 0

	for _, inst := range m.instances {
		inst.msg.Stamp(t1, false)
		inst.table.Encode(link.MasterToSlave, inst.msg.Data())
	}
	for _, inst := range m.instances {
		if err := inst.send(ctx, inst.msg.AppendData([]byte(wire.TokenData))); err != nil {
			err = errors.Wrapf(ErrTransport, "sending to instance %d: %s", inst.id, err)
			inst.fail(err)
			reportStepFailure("transport")
			return wire.Invalid, err
		}
	}

	var deadline time.Time
	if m.config.Timeout > 0 {
		deadline = time.Now().Add(m.config.Timeout)
	}

	next := wire.Never
	for _, inst := range m.instances {
		start := time.Now()
		a, err := inst.arrivals.WaitUntil(ctx, deadline)
		barrierWait.Observe(time.Since(start).Seconds())
		if err != nil {
			switch {
			case errors.Is(err, barrier.ErrClosed):
				err = inst.Err()
				reportStepFailure("transport")
			case errors.Is(err, barrier.ErrTimeout):
				inst.fail(err)
				reportStepFailure("timeout")
			default:
				reportStepFailure("canceled")
			}
			return wire.Invalid, errors.Wrapf(err, "instance %d", inst.id)
		}

		if a.done != (t1 == wire.Never) {
			err := errors.Wrapf(ErrTransport, "instance %d finished out of order", inst.id)
			inst.fail(err)
			reportStepFailure("transport")
			return wire.Invalid, err
		}
		if err := inst.msg.UnmarshalData(a.payload); err != nil {
			err = errors.Wrapf(ErrTransport, "instance %d sent malformed data: %s", inst.id, err)
			inst.fail(err)
			reportStepFailure("transport")
			return wire.Invalid, err
		}
		inst.table.Decode(link.SlaveToMaster, inst.msg.Data())

		h := inst.msg.Header()
		if h.Timestamp < 0 {
			err := errors.Wrapf(ErrTransport, "instance %d reported invalid time %d", inst.id, h.Timestamp)
			inst.fail(err)
			reportStepFailure("transport")
			return wire.Invalid, err
		}
		if h.HardEvent {
			m.hardEvents++
		}
		if h.Timestamp < next {
			next = h.Timestamp
		}
	}
	hardEvents.Add(float64(m.hardEvents))

	return next, nil
}

// collectExits counts instances which exited since the previous step.
func (m *Master) collectExits() int {
	for _, inst := range m.instances {
		if !inst.counted && inst.exited.Load() {
			inst.counted = true
			m.exited++
		}
	}
	return m.exited
}

func (m *Master) launch(ctx context.Context, inst *Instance, advertise string) error {
	err := resonance.RunClient(ctx, inst.config.Launcher, resonance.Config{MaxMessageSize: launcherMaxMessageSize},
		func(ctx context.Context, c *resonance.Connection) error {
			return requestRun(c, &wire.RunRequest{
				Model:     inst.config.Model,
				Master:    advertise,
				Transport: string(inst.config.Transport),
				SessionID: inst.session,
				Flags:     inst.config.Flags,
			})
		})
	if err != nil {
		return errors.Wrapf(ErrHandshake, "launching slave on %s: %s", inst.config.Launcher, err)
	}
	return nil
}

func messageSize(table *link.Table) int {
	layout := table.Layout()
	return maxReasonSize + max(
		len(wire.TokenInstance)+wire.SessionDescriptorSize,
		len(wire.TokenLinks)+int(layout.NameSize)+2*len(table.Sizes()),
		len(wire.TokenData)+layout.Usable(),
	)
}
