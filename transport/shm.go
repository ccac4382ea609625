package transport

import (
	"fmt"
	"path/filepath"
	"time"
)

// DefaultSharedMemoryDir is the directory holding segments and event files.
const DefaultSharedMemoryDir = "/dev/shm"

// slotHeader is the length prefix stored in front of each message in a slot.
const slotHeader = 4

// SharedMemoryConfig configures the shared memory transport.
type SharedMemoryConfig struct {
	// Dir is the directory holding the segment and the two event files.
	Dir string

	// Name identifies the segment. Both sides derive it from the session id.
	Name string

	// SlotSize is the maximum message size in each direction. Used by the creating side only.
	SlotSize int

	// Timeout bounds every wait for the peer's event. Zero waits until the context is done.
	Timeout time.Duration
}

// SharedMemoryName returns the segment name for the session.
func SharedMemoryName(session uint64) string {
	return fmt.Sprintf("tandem-%016x", session)
}

func (c SharedMemoryConfig) paths() (segment, masterReady, slaveReady string) {
	dir := c.Dir
	if dir == "" {
		dir = DefaultSharedMemoryDir
	}
	base := filepath.Join(dir, c.Name)
	return base + ".seg", base + ".master-ready", base + ".slave-ready"
}
