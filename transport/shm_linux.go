//go:build linux

package transport

import (
	"context"
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var _ Transport = &sharedMemory{}

// sharedMemory maps one segment split into two slots: master->slave and slave->master.
// Each side signals its own event after filling its slot and waits on the peer's event
// before reading the peer's slot.
type sharedMemory struct {
	config SharedMemoryConfig
	owner  bool

	mu       sync.RWMutex
	segment  []byte
	sendSlot []byte
	recvSlot []byte

	ownEvent  *os.File
	peerEvent *os.File
	closeOnce sync.Once
}

// CreateSharedMemory creates the segment and the events. It is used by the master,
// which also removes them on Close.
func CreateSharedMemory(config SharedMemoryConfig) (Transport, error) {
	if config.SlotSize <= 0 {
		return nil, errors.Errorf("invalid slot size %d", config.SlotSize)
	}

	segPath, masterPath, slavePath := config.paths()
	created := make([]string, 0, 2)
	for _, p := range []string{masterPath, slavePath} {
		if err := unix.Mkfifo(p, 0o600); err != nil {
			removeAll(created...)
			return nil, errors.Wrapf(err, "creating event %s", p)
		}
		created = append(created, p)
	}

	// Segment appears under its final name only once it is fully sized.
	tmpPath := segPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		removeAll(masterPath, slavePath)
		return nil, errors.WithStack(err)
	}
	err = f.Truncate(int64(2 * (config.SlotSize + slotHeader)))
	if errClose := f.Close(); err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(tmpPath, segPath)
	}
	if err != nil {
		removeAll(tmpPath, masterPath, slavePath)
		return nil, errors.WithStack(err)
	}

	s, err := openSharedMemory(config, true)
	if err != nil {
		removeAll(segPath, masterPath, slavePath)
		return nil, err
	}
	return s, nil
}

// OpenSharedMemory attaches to the segment created by the master.
func OpenSharedMemory(config SharedMemoryConfig) (Transport, error) {
	return openSharedMemory(config, false)
}

func openSharedMemory(config SharedMemoryConfig, owner bool) (*sharedMemory, error) {
	segPath, masterPath, slavePath := config.paths()

	f, err := os.OpenFile(segPath, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	size := int(st.Size())
	if size < 2*(slotHeader+1) || size%2 != 0 {
		return nil, errors.Errorf("segment %s has invalid size %d", segPath, size)
	}

	segment, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping %s", segPath)
	}

	// O_RDWR keeps opening a FIFO from blocking until the peer opens it.
	masterEvent, err := os.OpenFile(masterPath, os.O_RDWR, 0)
	if err != nil {
		_ = unix.Munmap(segment)
		return nil, errors.WithStack(err)
	}
	slaveEvent, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		_ = masterEvent.Close()
		_ = unix.Munmap(segment)
		return nil, errors.WithStack(err)
	}

	s := &sharedMemory{
		config:  config,
		owner:   owner,
		segment: segment,
	}
	masterSlot, slaveSlot := segment[:size/2], segment[size/2:]
	if owner {
		s.sendSlot, s.recvSlot = masterSlot, slaveSlot
		s.ownEvent, s.peerEvent = masterEvent, slaveEvent
	} else {
		s.sendSlot, s.recvSlot = slaveSlot, masterSlot
		s.ownEvent, s.peerEvent = slaveEvent, masterEvent
	}
	return s, nil
}

// Send copies the message into the own slot and signals the own event.
func (s *sharedMemory) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.segment == nil {
		return errors.WithStack(ErrClosed)
	}
	if len(payload) > len(s.sendSlot)-slotHeader {
		return errors.Errorf("message of %d bytes exceeds slot of %d bytes", len(payload), len(s.sendSlot)-slotHeader)
	}

	binary.LittleEndian.PutUint32(s.sendSlot, uint32(len(payload)))
	copy(s.sendSlot[slotHeader:], payload)

	if _, err := s.ownEvent.Write([]byte{1}); err != nil {
		return s.mapError(ctx, err)
	}
	return nil
}

// Receive waits for the peer's event and copies the message out of the peer's slot.
func (s *sharedMemory) Receive(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.segment == nil {
		return nil, errors.WithStack(ErrClosed)
	}

	var deadline time.Time
	if s.config.Timeout > 0 {
		deadline = time.Now().Add(s.config.Timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := s.peerEvent.SetReadDeadline(deadline); err != nil {
		return nil, s.mapError(ctx, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.peerEvent.SetReadDeadline(time.Now())
	})
	defer stop()

	var signal [1]byte
	if _, err := s.peerEvent.Read(signal[:]); err != nil {
		return nil, s.mapError(ctx, err)
	}

	n := int(binary.LittleEndian.Uint32(s.recvSlot))
	if n > len(s.recvSlot)-slotHeader {
		return nil, errors.Errorf("peer declared %d bytes in slot of %d bytes", n, len(s.recvSlot)-slotHeader)
	}
	payload := make([]byte, n)
	copy(payload, s.recvSlot[slotHeader:slotHeader+n])
	return payload, nil
}

// Close unmaps the segment. The creating side removes the files.
func (s *sharedMemory) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// closing events first unblocks pending receives holding the read lock
		err = s.ownEvent.Close()
		if errPeer := s.peerEvent.Close(); err == nil {
			err = errPeer
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if errUnmap := unix.Munmap(s.segment); err == nil {
			err = errUnmap
		}
		s.segment, s.sendSlot, s.recvSlot = nil, nil, nil

		if s.owner {
			segPath, masterPath, slavePath := s.config.paths()
			removeAll(segPath, masterPath, slavePath)
		}
	})
	return errors.WithStack(err)
}

func (s *sharedMemory) mapError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return errors.WithStack(ctx.Err())
	case errors.Is(err, os.ErrDeadlineExceeded):
		return errors.Wrapf(ErrTimeout, "no event on %s", s.config.Name)
	case errors.Is(err, os.ErrClosed):
		return errors.WithStack(ErrClosed)
	default:
		return errors.WithStack(err)
	}
}

func removeAll(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
