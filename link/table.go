package link

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/outofforest/tandem/wire"
)

// Direction tells which side writes the linkage.
type Direction uint8

const (
	// MasterToSlave linkages are written by the master and read by the slave.
	MasterToSlave Direction = iota

	// SlaveToMaster linkages are written by the slave and read by the master.
	SlaveToMaster
)

func (d Direction) String() string {
	if d == MasterToSlave {
		return "master->slave"
	}
	return "slave->master"
}

// Linkage is one property crossing the process boundary.
type Linkage struct {
	Direction Direction
	Name      string
	Property  Property
	Offset    int
}

// Table holds the linkages of one instance. Writes are master->slave, reads are slave->master,
// on both sides of the session.
type Table struct {
	Writes []Linkage
	Reads  []Linkage

	layout wire.Layout
}

// NewTable resolves the names and assigns data region offsets: writes first, then reads.
func NewTable(writes, reads []string, resolver Resolver) (*Table, error) {
	t := &Table{}
	offset := 0
	bind := func(dir Direction, names []string) ([]Linkage, []wire.Entry, error) {
		linkages := make([]Linkage, 0, len(names))
		entries := make([]wire.Entry, 0, len(names))
		for _, name := range names {
			if err := wire.ValidateName(name); err != nil {
				return nil, nil, err
			}
			p, err := resolver.Resolve(name)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "resolving %s linkage %q", dir, name)
			}
			linkages = append(linkages, Linkage{
				Direction: dir,
				Name:      name,
				Property:  p,
				Offset:    offset,
			})
			entries = append(entries, wire.Entry{Name: name, Size: p.Size()})
			offset += p.Size()
		}
		return linkages, entries, nil
	}

	var writeEntries, readEntries []wire.Entry
	var err error
	if t.Writes, writeEntries, err = bind(MasterToSlave, writes); err != nil {
		return nil, err
	}
	if t.Reads, readEntries, err = bind(SlaveToMaster, reads); err != nil {
		return nil, err
	}
	if t.layout, err = wire.NewLayout(writeEntries, readEntries); err != nil {
		return nil, err
	}
	return t, nil
}

// Layout returns the message layout derived from the linkages.
func (t *Table) Layout() wire.Layout {
	return t.layout
}

// Names returns the serialized name region.
func (t *Table) Names() []byte {
	return wire.EncodeNames(names(t.Writes), names(t.Reads))
}

// Sizes returns the value size of every linkage, writes first.
func (t *Table) Sizes() []int {
	sizes := make([]int, 0, len(t.Writes)+len(t.Reads))
	for _, l := range slices.Concat(t.Writes, t.Reads) {
		sizes = append(sizes, l.Property.Size())
	}
	return sizes
}

// Encode copies current local values of the linkages in the direction into the data region.
func (t *Table) Encode(dir Direction, data []byte) {
	for _, l := range t.linkages(dir) {
		l.Property.Get(data[l.Offset : l.Offset+l.Property.Size()])
	}
}

// Decode copies values of the linkages in the direction from the data region into local values.
func (t *Table) Decode(dir Direction, data []byte) {
	for _, l := range t.linkages(dir) {
		l.Property.Set(data[l.Offset : l.Offset+l.Property.Size()])
	}
}

func (t *Table) linkages(dir Direction) []Linkage {
	if dir == MasterToSlave {
		return t.Writes
	}
	return t.Reads
}

func names(linkages []Linkage) []string {
	ns := make([]string, 0, len(linkages))
	for _, l := range linkages {
		ns = append(ns, l.Name)
	}
	return ns
}
