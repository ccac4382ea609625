package link

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"
)

// Values is an in-memory model: a set of named fixed-width values.
type Values struct {
	mu     sync.RWMutex
	values map[string]*value
}

// NewValues creates an empty set of values.
func NewValues() *Values {
	return &Values{
		values: map[string]*value{},
	}
}

// Define adds a raw value of the given size.
func (v *Values) Define(name string, size int) error {
	if size <= 0 {
		return errors.Errorf("value %q must have positive size", name)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.values[name]; exists {
		return errors.Errorf("value %q already defined", name)
	}
	v.values[name] = &value{
		mu:  &v.mu,
		buf: make([]byte, size),
	}
	return nil
}

// DefineFloat64 adds a float64 value.
func (v *Values) DefineFloat64(name string, initial float64) error {
	if err := v.Define(name, 8); err != nil {
		return err
	}
	return v.SetFloat64(name, initial)
}

// DefineInt64 adds an int64 value.
func (v *Values) DefineInt64(name string, initial int64) error {
	if err := v.Define(name, 8); err != nil {
		return err
	}
	return v.SetInt64(name, initial)
}

// Float64 returns the float64 value.
func (v *Values) Float64(name string) (float64, error) {
	b, err := v.get(name, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// SetFloat64 sets the float64 value.
func (v *Values) SetFloat64(name string, x float64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
	return v.set(name, b[:])
}

// Int64 returns the int64 value.
func (v *Values) Int64(name string) (int64, error) {
	b, err := v.get(name, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// SetInt64 sets the int64 value.
func (v *Values) SetInt64(name string, x int64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(x))
	return v.set(name, b[:])
}

// Resolve implements Resolver.
func (v *Values) Resolve(name string) (Property, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	val, exists := v.values[name]
	if !exists {
		return nil, errors.Wrapf(ErrUnresolved, "no value %q", name)
	}
	return val, nil
}

func (v *Values) get(name string, size int) ([]byte, error) {
	p, err := v.Resolve(name)
	if err != nil {
		return nil, err
	}
	if p.Size() != size {
		return nil, errors.Errorf("value %q has %d bytes, requested %d", name, p.Size(), size)
	}
	b := make([]byte, size)
	p.Get(b)
	return b, nil
}

func (v *Values) set(name string, b []byte) error {
	p, err := v.Resolve(name)
	if err != nil {
		return err
	}
	if p.Size() != len(b) {
		return errors.Errorf("value %q has %d bytes, got %d", name, p.Size(), len(b))
	}
	p.Set(b)
	return nil
}

type value struct {
	mu  *sync.RWMutex
	buf []byte
}

func (v *value) Size() int {
	return len(v.buf)
}

func (v *value) Get(dst []byte) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	copy(dst, v.buf)
}

func (v *value) Set(src []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()

	copy(v.buf, src)
}
