package wire

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedNames is returned when the name region cannot be parsed.
var ErrMalformedNames = errors.New("malformed name region")

// EncodeNames serializes the name region: writer group, a single space, reader group,
// entries separated by commas, terminated by NUL.
func EncodeNames(writes, reads []string) []byte {
	b := make([]byte, 0, namesLen(writes, reads))
	b = append(b, strings.Join(writes, ",")...)
	b = append(b, ' ')
	b = append(b, strings.Join(reads, ",")...)
	return append(b, 0)
}

// DecodeNames parses the name region produced by EncodeNames.
func DecodeNames(b []byte) (writes, reads []string, err error) {
	if len(b) == 0 || b[len(b)-1] != 0 {
		return nil, nil, errors.Wrap(ErrMalformedNames, "missing terminator")
	}
	s := string(b[:len(b)-1])
	if strings.IndexByte(s, 0) >= 0 {
		return nil, nil, errors.Wrap(ErrMalformedNames, "unexpected NUL")
	}

	groups := strings.Split(s, " ")
	if len(groups) != 2 {
		return nil, nil, errors.Wrapf(ErrMalformedNames, "expected 2 groups, got %d", len(groups))
	}

	if writes, err = splitGroup(groups[0]); err != nil {
		return nil, nil, err
	}
	if reads, err = splitGroup(groups[1]); err != nil {
		return nil, nil, err
	}
	return writes, reads, nil
}

// EncodeLinks builds the body of the links message: the name region followed by the value
// size of every entry, writers first, each as little-endian uint16.
func EncodeLinks(names []byte, sizes []int) []byte {
	b := make([]byte, 0, len(names)+2*len(sizes))
	b = append(b, names...)
	for _, size := range sizes {
		b = binary.LittleEndian.AppendUint16(b, uint16(size))
	}
	return b
}

// DecodeLinks splits the body of the links message into the name region and the value sizes.
func DecodeLinks(b []byte, nameSize int) ([]byte, []int, error) {
	if len(b) < nameSize || (len(b)-nameSize)%2 != 0 {
		return nil, nil, errors.Wrapf(ErrMalformedNames, "links message of %d bytes with name region of %d bytes",
			len(b), nameSize)
	}
	names, rest := b[:nameSize], b[nameSize:]
	sizes := make([]int, 0, len(rest)/2)
	for ; len(rest) > 0; rest = rest[2:] {
		sizes = append(sizes, int(binary.LittleEndian.Uint16(rest)))
	}
	return names, sizes, nil
}

// ValidateName checks that the name has the object.property form and contains no separators.
func ValidateName(name string) error {
	if strings.ContainsAny(name, ", \x00") {
		return errors.Wrapf(ErrMalformedNames, "name %q contains a separator", name)
	}
	object, property, ok := strings.Cut(name, ".")
	if !ok || object == "" || property == "" {
		return errors.Wrapf(ErrMalformedNames, "name %q is not in object.property form", name)
	}
	return nil
}

func splitGroup(group string) ([]string, error) {
	if group == "" {
		return nil, nil
	}
	names := strings.Split(group, ",")
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func namesLen(writes, reads []string) int {
	entries := func(names []string) []Entry {
		es := make([]Entry, 0, len(names))
		for _, n := range names {
			es = append(es, Entry{Name: n})
		}
		return es
	}
	return nameRegionSize(entries(writes), entries(reads))
}
