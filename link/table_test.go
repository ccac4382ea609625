package link_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/tandem/link"
	"github.com/outofforest/tandem/wire"
)

func newValues(t *testing.T) *link.Values {
	requireT := require.New(t)

	v := link.NewValues()
	requireT.NoError(v.DefineFloat64("house.voltage", 0))
	requireT.NoError(v.DefineInt64("house.mode", 0))
	requireT.NoError(v.Define("house.flags", 2))
	requireT.NoError(v.DefineFloat64("house.load", 0))
	return v
}

func TestTableOffsetsAndLayout(t *testing.T) {
	requireT := require.New(t)

	table, err := link.NewTable(
		[]string{"house.voltage", "house.flags"},
		[]string{"house.mode"},
		newValues(t),
	)
	requireT.NoError(err)

	requireT.Len(table.Writes, 2)
	requireT.Len(table.Reads, 1)
	requireT.Equal(0, table.Writes[0].Offset)
	requireT.Equal(8, table.Writes[1].Offset)
	requireT.Equal(10, table.Reads[0].Offset)
	requireT.Equal(link.MasterToSlave, table.Writes[0].Direction)
	requireT.Equal(link.SlaveToMaster, table.Reads[0].Direction)

	layout := table.Layout()
	requireT.EqualValues(18, layout.DataSize)
	requireT.Len(table.Names(), int(layout.NameSize))
	requireT.Equal("house.voltage,house.flags house.mode\x00", string(table.Names()))
	requireT.Equal([]int{8, 2, 8}, table.Sizes())
}

func TestTableRoundTrip(t *testing.T) {
	requireT := require.New(t)

	writes := []string{"house.voltage", "house.mode"}
	reads := []string{"house.load"}

	master := newValues(t)
	slave := newValues(t)
	requireT.NoError(master.SetFloat64("house.voltage", 239.5))
	requireT.NoError(master.SetInt64("house.mode", -3))
	requireT.NoError(slave.SetFloat64("house.load", 1.5e3))

	masterTable, err := link.NewTable(writes, reads, master)
	requireT.NoError(err)
	slaveTable, err := link.NewTable(writes, reads, slave)
	requireT.NoError(err)
	requireT.Equal(masterTable.Layout(), slaveTable.Layout())

	data := make([]byte, masterTable.Layout().DataSize)
	masterTable.Encode(link.MasterToSlave, data)
	slaveTable.Decode(link.MasterToSlave, data)

	voltage, err := slave.Float64("house.voltage")
	requireT.NoError(err)
	requireT.InDelta(239.5, voltage, 0)
	mode, err := slave.Int64("house.mode")
	requireT.NoError(err)
	requireT.EqualValues(-3, mode)

	slaveTable.Encode(link.SlaveToMaster, data)
	masterTable.Decode(link.SlaveToMaster, data)

	load, err := master.Float64("house.load")
	requireT.NoError(err)
	requireT.InDelta(1.5e3, load, 0)

	// master->slave values stay untouched by the reverse direction
	voltage, err = master.Float64("house.voltage")
	requireT.NoError(err)
	requireT.InDelta(239.5, voltage, 0)
}

func TestTableRejectsBadNames(t *testing.T) {
	requireT := require.New(t)

	_, err := link.NewTable([]string{"house.unknown"}, nil, newValues(t))
	requireT.True(errors.Is(err, link.ErrUnresolved))

	_, err = link.NewTable(nil, []string{"house"}, newValues(t))
	requireT.True(errors.Is(err, wire.ErrMalformedNames))
}

func TestTableRejectsOverflow(t *testing.T) {
	requireT := require.New(t)

	v := link.NewValues()
	requireT.NoError(v.Define("big.blob", 1<<16))

	_, err := link.NewTable([]string{"big.blob"}, nil, v)
	requireT.True(errors.Is(err, wire.ErrLayoutOverflow))
}

func TestValues(t *testing.T) {
	requireT := require.New(t)

	v := link.NewValues()
	requireT.NoError(v.DefineFloat64("a.b", 1))
	requireT.Error(v.DefineFloat64("a.b", 2))
	requireT.Error(v.Define("a.c", 0))

	_, err := v.Int64("a.missing")
	requireT.True(errors.Is(err, link.ErrUnresolved))

	requireT.NoError(v.Define("a.short", 2))
	_, err = v.Float64("a.short")
	requireT.Error(err)
	requireT.Error(v.SetFloat64("a.short", 1))
}
