package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SessionDescriptorSize is the size of the marshalled SessionDescriptor.
const SessionDescriptorSize = 26

// SessionDescriptor lets the slave allocate buffers matching the master's layout.
type SessionDescriptor struct {
	SessionID  SessionID
	TotalSize  uint16
	NameSize   uint16
	DataSize   uint16
	InstanceID InstanceID
	Timestamp  Timestamp
}

// NewSessionDescriptor builds the descriptor for the layout.
func NewSessionDescriptor(session SessionID, id InstanceID, layout Layout, now Timestamp) SessionDescriptor {
	return SessionDescriptor{
		SessionID:  session,
		TotalSize:  uint16(layout.Total()),
		NameSize:   layout.NameSize,
		DataSize:   layout.DataSize,
		InstanceID: id,
		Timestamp:  now,
	}
}

// Layout returns the layout described by the descriptor.
func (d SessionDescriptor) Layout() Layout {
	return Layout{NameSize: d.NameSize, DataSize: d.DataSize}
}

// Marshal returns the binary form of the descriptor.
func (d SessionDescriptor) Marshal() []byte {
	b := make([]byte, SessionDescriptorSize)
	binary.LittleEndian.PutUint64(b[0:], uint64(d.SessionID))
	binary.LittleEndian.PutUint16(b[8:], d.TotalSize)
	binary.LittleEndian.PutUint16(b[10:], d.NameSize)
	binary.LittleEndian.PutUint16(b[12:], d.DataSize)
	binary.LittleEndian.PutUint32(b[14:], uint32(d.InstanceID))
	binary.LittleEndian.PutUint64(b[18:], uint64(d.Timestamp))
	return b
}

// UnmarshalSessionDescriptor parses the descriptor and checks its sizes are consistent.
func UnmarshalSessionDescriptor(b []byte) (SessionDescriptor, error) {
	if len(b) != SessionDescriptorSize {
		return SessionDescriptor{}, errors.Errorf("session descriptor requires %d bytes, got %d",
			SessionDescriptorSize, len(b))
	}
	d := SessionDescriptor{
		SessionID:  SessionID(binary.LittleEndian.Uint64(b[0:])),
		TotalSize:  binary.LittleEndian.Uint16(b[8:]),
		NameSize:   binary.LittleEndian.Uint16(b[10:]),
		DataSize:   binary.LittleEndian.Uint16(b[12:]),
		InstanceID: InstanceID(binary.LittleEndian.Uint32(b[14:])),
		Timestamp:  Timestamp(binary.LittleEndian.Uint64(b[18:])),
	}
	if int(d.TotalSize) != d.Layout().Total() {
		return SessionDescriptor{}, errors.Errorf("total size %d does not match regions %d+%d+%d",
			d.TotalSize, HeaderSize, d.NameSize, d.DataSize)
	}
	return d, nil
}
