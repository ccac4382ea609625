//go:build !linux

package transport

import "github.com/pkg/errors"

// CreateSharedMemory is not available on this platform.
func CreateSharedMemory(config SharedMemoryConfig) (Transport, error) {
	return nil, errors.WithStack(ErrUnsupported)
}

// OpenSharedMemory is not available on this platform.
func OpenSharedMemory(config SharedMemoryConfig) (Transport, error) {
	return nil, errors.WithStack(ErrUnsupported)
}
