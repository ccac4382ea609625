package wire_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/tandem/wire"
)

func TestEncodeNames(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal("obj1.prop1,obj2.prop2 obj3.prop3,obj4.prop4\x00",
		string(wire.EncodeNames(
			[]string{"obj1.prop1", "obj2.prop2"},
			[]string{"obj3.prop3", "obj4.prop4"},
		)))
	requireT.Equal(" \x00", string(wire.EncodeNames(nil, nil)))
}

func TestDecodeNames(t *testing.T) {
	requireT := require.New(t)

	writes, reads, err := wire.DecodeNames([]byte("obj1.prop1,obj2.prop2 obj3.prop3\x00"))
	requireT.NoError(err)
	requireT.Equal([]string{"obj1.prop1", "obj2.prop2"}, writes)
	requireT.Equal([]string{"obj3.prop3"}, reads)

	writes, reads, err = wire.DecodeNames([]byte(" a.b\x00"))
	requireT.NoError(err)
	requireT.Empty(writes)
	requireT.Equal([]string{"a.b"}, reads)
}

func TestDecodeNamesRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"a.b c.d",
		"a.b\x00",
		"a.b c.d e.f\x00",
		"a.b,,c.d e.f\x00",
		"ab c.d\x00",
		"a. c.d\x00",
		".b c.d\x00",
		"a.b c\x00d\x00",
	} {
		_, _, err := wire.DecodeNames([]byte(in))
		require.True(t, errors.Is(err, wire.ErrMalformedNames), "input %q", in)
	}
}

func TestLinks(t *testing.T) {
	requireT := require.New(t)

	names := wire.EncodeNames([]string{"a.x", "a.y"}, []string{"b.z"})
	body := wire.EncodeLinks(names, []int{8, 2, 300})
	requireT.Len(body, len(names)+6)

	decodedNames, sizes, err := wire.DecodeLinks(body, len(names))
	requireT.NoError(err)
	requireT.Equal(names, decodedNames)
	requireT.Equal([]int{8, 2, 300}, sizes)

	_, _, err = wire.DecodeLinks(body[:len(body)-1], len(names))
	requireT.True(errors.Is(err, wire.ErrMalformedNames))
	_, _, err = wire.DecodeLinks(names[:3], len(names))
	requireT.True(errors.Is(err, wire.ErrMalformedNames))
}

func TestValidateName(t *testing.T) {
	requireT := require.New(t)

	requireT.NoError(wire.ValidateName("house.voltage"))
	requireT.NoError(wire.ValidateName("house.phase.A"))
	requireT.Error(wire.ValidateName("house"))
	requireT.Error(wire.ValidateName("house.volt,age"))
	requireT.Error(wire.ValidateName("house.volt age"))
}
