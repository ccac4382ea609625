package wire

import (
	"math"
	"strconv"
)

type (
	// SessionID correlates one master/slave pairing across the handshake and the steady state.
	SessionID uint64

	// InstanceID is the index of the instance in the master's registry.
	InstanceID uint32

	// Timestamp is the simulation time in seconds.
	Timestamp int64
)

const (
	// Never means there is nothing further to do.
	Never Timestamp = math.MaxInt64

	// Invalid is returned together with an error when a step fails.
	Invalid Timestamp = -1
)

func (t Timestamp) String() string {
	switch t {
	case Never:
		return "NEVER"
	case Invalid:
		return "INVALID"
	default:
		return strconv.FormatInt(int64(t), 10)
	}
}

// RunRequest asks the remote launcher to start a slave for the model.
type RunRequest struct {
	Model     string
	Master    string
	Transport string
	SessionID SessionID
	Flags     string
}

// RunResponse is the launcher's answer to RunRequest. Empty Error means the slave was started.
type RunResponse struct {
	Error string
}
