package wire

import (
	"math"

	"github.com/pkg/errors"
)

// HeaderSize is the size of the marshalled Header.
const HeaderSize = 21

// ErrLayoutOverflow is returned when a region does not fit into its header field.
var ErrLayoutOverflow = errors.New("message layout exceeds field width")

// Entry is one linkage as seen by the layout: its name and the size of its value.
type Entry struct {
	Name string
	Size int
}

// Layout is the size table of a message. Every region boundary is derived from it.
type Layout struct {
	NameSize uint16
	DataSize uint16
}

// NewLayout computes the layout for the writer and reader groups.
func NewLayout(writes, reads []Entry) (Layout, error) {
	nameSize := nameRegionSize(writes, reads)
	dataSize := 0
	for _, group := range [][]Entry{writes, reads} {
		for _, e := range group {
			if e.Size <= 0 {
				return Layout{}, errors.Errorf("value of %q has invalid size %d", e.Name, e.Size)
			}
			dataSize += e.Size
		}
	}

	if nameSize > math.MaxUint16 {
		return Layout{}, errors.Wrapf(ErrLayoutOverflow, "name region takes %d bytes", nameSize)
	}
	if dataSize > math.MaxUint16 {
		return Layout{}, errors.Wrapf(ErrLayoutOverflow, "data region takes %d bytes", dataSize)
	}
	if total := HeaderSize + nameSize + dataSize; total > math.MaxUint16 {
		return Layout{}, errors.Wrapf(ErrLayoutOverflow, "message takes %d bytes", total)
	}

	return Layout{
		NameSize: uint16(nameSize),
		DataSize: uint16(dataSize),
	}, nil
}

// Total returns the allocated size of the message.
func (l Layout) Total() int {
	return HeaderSize + int(l.NameSize) + int(l.DataSize)
}

// Usable returns the number of bytes carried by a steady-state message.
func (l Layout) Usable() int {
	return HeaderSize + int(l.DataSize)
}

// nameRegionSize is the length of EncodeNames output: names, commas inside groups,
// one space between groups and the terminating NUL.
func nameRegionSize(writes, reads []Entry) int {
	n := 2
	for _, group := range [][]Entry{writes, reads} {
		for i, e := range group {
			n += len(e.Name)
			if i > 0 {
				n++
			}
		}
	}
	return n
}
