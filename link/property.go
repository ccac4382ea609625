package link

import "github.com/pkg/errors"

// ErrUnresolved is returned when a property name cannot be bound to a local value.
var ErrUnresolved = errors.New("property cannot be resolved")

// Property is a fixed-width value slot of the local model.
type Property interface {
	// Size returns the number of bytes of the value.
	Size() int

	// Get copies the value into dst.
	Get(dst []byte)

	// Set replaces the value with src.
	Set(src []byte)
}

// Resolver binds object.property names to local properties.
type Resolver interface {
	Resolve(name string) (Property, error)
}
