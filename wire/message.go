package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header is the fixed-size part of every message.
type Header struct {
	UsableSize    uint16
	AllocatedSize uint16
	Timestamp     Timestamp
	HardEvent     bool
	NameSize      uint16
	DataSize      uint16
	InstanceID    InstanceID
}

// MarshalTo writes the header into the first HeaderSize bytes of b.
func (h Header) MarshalTo(b []byte) {
	_ = b[HeaderSize-1]

	binary.LittleEndian.PutUint16(b[0:], h.UsableSize)
	binary.LittleEndian.PutUint16(b[2:], h.AllocatedSize)
	binary.LittleEndian.PutUint64(b[4:], uint64(h.Timestamp))
	b[12] = 0
	if h.HardEvent {
		b[12] = 1
	}
	binary.LittleEndian.PutUint16(b[13:], h.NameSize)
	binary.LittleEndian.PutUint16(b[15:], h.DataSize)
	binary.LittleEndian.PutUint32(b[17:], uint32(h.InstanceID))
}

// UnmarshalHeader reads the header from the beginning of b.
func UnmarshalHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Errorf("header requires %d bytes, got %d", HeaderSize, len(b))
	}
	h := Header{
		UsableSize:    binary.LittleEndian.Uint16(b[0:]),
		AllocatedSize: binary.LittleEndian.Uint16(b[2:]),
		Timestamp:     Timestamp(binary.LittleEndian.Uint64(b[4:])),
		HardEvent:     b[12] != 0,
		NameSize:      binary.LittleEndian.Uint16(b[13:]),
		DataSize:      binary.LittleEndian.Uint16(b[15:]),
		InstanceID:    InstanceID(binary.LittleEndian.Uint32(b[17:])),
	}
	if int(h.AllocatedSize) != HeaderSize+int(h.NameSize)+int(h.DataSize) {
		return Header{}, errors.Errorf("allocated size %d does not match regions %d+%d+%d",
			h.AllocatedSize, HeaderSize, h.NameSize, h.DataSize)
	}
	return h, nil
}

// Message is the staging buffer of one instance. It owns a single byte slice split into
// header, name region and data region by its layout.
type Message struct {
	layout Layout
	buf    []byte

	timestamp Timestamp
	hardEvent bool
	id        InstanceID
}

// NewMessage allocates a message for the layout.
func NewMessage(layout Layout, id InstanceID) *Message {
	return &Message{
		layout: layout,
		buf:    make([]byte, layout.Total()),
		id:     id,
	}
}

// Layout returns the layout of the message.
func (m *Message) Layout() Layout {
	return m.layout
}

// Header returns the current header.
func (m *Message) Header() Header {
	return Header{
		UsableSize:    uint16(m.layout.Usable()),
		AllocatedSize: uint16(m.layout.Total()),
		Timestamp:     m.timestamp,
		HardEvent:     m.hardEvent,
		NameSize:      m.layout.NameSize,
		DataSize:      m.layout.DataSize,
		InstanceID:    m.id,
	}
}

// Stamp sets the timestamp and the hard event flag.
func (m *Message) Stamp(timestamp Timestamp, hardEvent bool) {
	m.timestamp = timestamp
	m.hardEvent = hardEvent
}

// Names returns the name region.
func (m *Message) Names() []byte {
	return m.buf[HeaderSize : HeaderSize+int(m.layout.NameSize)]
}

// SetNames copies the serialized name region into the message.
func (m *Message) SetNames(names []byte) error {
	if len(names) != int(m.layout.NameSize) {
		return errors.Errorf("name region has %d bytes, layout expects %d", len(names), m.layout.NameSize)
	}
	copy(m.Names(), names)
	return nil
}

// Data returns the data region.
func (m *Message) Data() []byte {
	return m.buf[HeaderSize+int(m.layout.NameSize):]
}

// AppendData appends the header followed by the data region to dst.
func (m *Message) AppendData(dst []byte) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, HeaderSize)...)
	m.Header().MarshalTo(dst[start:])
	return append(dst, m.Data()...)
}

// UnmarshalData reads a steady-state message produced by AppendData into the staging buffer.
func (m *Message) UnmarshalData(b []byte) error {
	h, err := UnmarshalHeader(b)
	if err != nil {
		return err
	}
	if h.NameSize != m.layout.NameSize || h.DataSize != m.layout.DataSize {
		return errors.Errorf("message regions %d/%d do not match layout %d/%d",
			h.NameSize, h.DataSize, m.layout.NameSize, m.layout.DataSize)
	}
	if len(b) != HeaderSize+int(h.DataSize) || int(h.UsableSize) != len(b) {
		return errors.Errorf("message carries %d bytes, header declares %d", len(b), h.UsableSize)
	}

	m.timestamp = h.Timestamp
	m.hardEvent = h.HardEvent
	m.id = h.InstanceID
	copy(m.Data(), b[HeaderSize:])
	return nil
}
