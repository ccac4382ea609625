package wire_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/tandem/wire"
)

func entries(names []string, size int) []wire.Entry {
	es := make([]wire.Entry, 0, len(names))
	for _, n := range names {
		es = append(es, wire.Entry{Name: n, Size: size})
	}
	return es
}

func TestLayoutMatchesEncodedNames(t *testing.T) {
	cases := []struct {
		name   string
		writes []string
		reads  []string
	}{
		{name: "both groups", writes: []string{"obj1.prop1", "obj2.prop2"}, reads: []string{"obj3.prop3", "obj4.prop4"}},
		{name: "single entries", writes: []string{"a.b"}, reads: []string{"c.d"}},
		{name: "writers only", writes: []string{"a.b", "c.d", "e.f"}},
		{name: "readers only", reads: []string{"a.b"}},
		{name: "empty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireT := require.New(t)

			layout, err := wire.NewLayout(entries(tc.writes, 8), entries(tc.reads, 4))
			requireT.NoError(err)

			requireT.Len(wire.EncodeNames(tc.writes, tc.reads), int(layout.NameSize))
			requireT.EqualValues(8*len(tc.writes)+4*len(tc.reads), layout.DataSize)
			requireT.Equal(wire.HeaderSize+int(layout.NameSize)+int(layout.DataSize), layout.Total())
			requireT.Equal(wire.HeaderSize+int(layout.DataSize), layout.Usable())
		})
	}
}

func TestLayoutNameSizeCountsSeparators(t *testing.T) {
	requireT := require.New(t)

	writes := []string{"obj1.prop1", "obj2.prop2"}
	reads := []string{"obj3.prop3", "obj4.prop4"}
	layout, err := wire.NewLayout(entries(writes, 8), entries(reads, 8))
	requireT.NoError(err)

	// one separator per entry: two commas, the group space and the terminator
	requireT.EqualValues(4*len("obj1.prop1")+4, layout.NameSize)
}

func TestLayoutOverflow(t *testing.T) {
	requireT := require.New(t)

	_, err := wire.NewLayout([]wire.Entry{{Name: "a.b", Size: 1 << 16}}, nil)
	requireT.True(errors.Is(err, wire.ErrLayoutOverflow))

	_, err = wire.NewLayout([]wire.Entry{{Name: "a." + strings.Repeat("x", 1<<16), Size: 8}}, nil)
	requireT.True(errors.Is(err, wire.ErrLayoutOverflow))

	_, err = wire.NewLayout(
		[]wire.Entry{{Name: "a.b", Size: 40000}},
		[]wire.Entry{{Name: "c.d", Size: 30000}},
	)
	requireT.True(errors.Is(err, wire.ErrLayoutOverflow))
}

func TestLayoutRejectsEmptyValue(t *testing.T) {
	_, err := wire.NewLayout([]wire.Entry{{Name: "a.b"}}, nil)
	require.Error(t, err)
}
