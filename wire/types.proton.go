package wire

import (
	"reflect"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id1 uint64 = iota + 1
	id0
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates marshaller.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller marshals and unmarshals messages.
type Marshaller struct {
}

// Messages returns list of the message types supported by marshaller.
func (m Marshaller) Messages() []any {
	return []any {
		RunRequest{},
		RunResponse{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *RunRequest:
		return id0, nil
	case *RunResponse:
		return id1, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *RunRequest:
		return size0(msg2), nil
	case *RunResponse:
		return size1(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *RunRequest:
		return id0, marshal0(msg2, buf), nil
	case *RunResponse:
		return id1, marshal1(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id0:
		msg := &RunRequest{}
		return msg, unmarshal0(msg, buf), nil
	case id1:
		msg := &RunResponse{}
		return msg, unmarshal1(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *RunRequest:
		return id0, makePatch0(msg2, msgSrc.(*RunRequest), buf), nil
	case *RunResponse:
		return id1, makePatch1(msg2, msgSrc.(*RunResponse), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *RunRequest:
		return applyPatch0(msg2, buf), nil
	case *RunResponse:
		return applyPatch1(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func size0(m *RunRequest) uint64 {
	var n uint64 = 5
	{
		// Model

		{
			l := uint64(len(m.Model))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Master

		{
			l := uint64(len(m.Master))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Transport

		{
			l := uint64(len(m.Transport))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// SessionID

		helpers.UInt64Size(m.SessionID, &n)
	}
	{
		// Flags

		{
			l := uint64(len(m.Flags))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshal0(m *RunRequest, b []byte) uint64 {
	var o uint64
	{
		// Model

		{
			l := uint64(len(m.Model))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Model)
			o += l
		}
	}
	{
		// Master

		{
			l := uint64(len(m.Master))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Master)
			o += l
		}
	}
	{
		// Transport

		{
			l := uint64(len(m.Transport))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Transport)
			o += l
		}
	}
	{
		// SessionID

		helpers.UInt64Marshal(m.SessionID, b, &o)
	}
	{
		// Flags

		{
			l := uint64(len(m.Flags))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Flags)
			o += l
		}
	}

	return o
}

func unmarshal0(m *RunRequest, b []byte) uint64 {
	var o uint64
	{
		// Model

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Model = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Master

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Master = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Transport

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Transport = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// SessionID

		helpers.UInt64Unmarshal(&m.SessionID, b, &o)
	}
	{
		// Flags

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Flags = string(b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func makePatch0(m, mSrc *RunRequest, b []byte) uint64 {
	var o uint64 = 1
	{
		// Model

		if reflect.DeepEqual(m.Model, mSrc.Model) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Model))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Model)
				o += l
			}
		}
	}
	{
		// Master

		if reflect.DeepEqual(m.Master, mSrc.Master) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			{
				l := uint64(len(m.Master))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Master)
				o += l
			}
		}
	}
	{
		// Transport

		if reflect.DeepEqual(m.Transport, mSrc.Transport) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			{
				l := uint64(len(m.Transport))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Transport)
				o += l
			}
		}
	}
	{
		// SessionID

		if reflect.DeepEqual(m.SessionID, mSrc.SessionID) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			helpers.UInt64Marshal(m.SessionID, b, &o)
		}
	}
	{
		// Flags

		if reflect.DeepEqual(m.Flags, mSrc.Flags) {
			b[0] &= 0xEF
		} else {
			b[0] |= 0x10
			{
				l := uint64(len(m.Flags))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Flags)
				o += l
			}
		}
	}

	return o
}

func applyPatch0(m *RunRequest, b []byte) uint64 {
	var o uint64 = 1
	{
		// Model

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Model = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Master

		if b[0]&0x02 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Master = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Transport

		if b[0]&0x04 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Transport = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// SessionID

		if b[0]&0x08 != 0 {
			helpers.UInt64Unmarshal(&m.SessionID, b, &o)
		}
	}
	{
		// Flags

		if b[0]&0x10 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Flags = string(b[o:o+l])
					o += l
				}
			}
		}
	}

	return o
}

func size1(m *RunResponse) uint64 {
	var n uint64 = 1
	{
		// Error

		{
			l := uint64(len(m.Error))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshal1(m *RunResponse, b []byte) uint64 {
	var o uint64
	{
		// Error

		{
			l := uint64(len(m.Error))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Error)
			o += l
		}
	}

	return o
}

func unmarshal1(m *RunResponse, b []byte) uint64 {
	var o uint64
	{
		// Error

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Error = string(b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func makePatch1(m, mSrc *RunResponse, b []byte) uint64 {
	var o uint64 = 1
	{
		// Error

		if reflect.DeepEqual(m.Error, mSrc.Error) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Error))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Error)
				o += l
			}
		}
	}

	return o
}

func applyPatch1(m *RunResponse, b []byte) uint64 {
	var o uint64 = 1
	{
		// Error

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Error = string(b[o:o+l])
					o += l
				}
			}
		}
	}

	return o
}
