// Package storage provides the key-value backends option overrides are
// persisted to.
package storage

import (
	"fmt"
	"io"

	"elicate/internal/options"
)

// Backend kinds accepted by Open.
const (
	KindMemory = "memory"
	KindFile   = "file"
	KindRedis  = "redis"
)

// Backend is a KeyValueStore that holds resources until closed.
type Backend interface {
	options.KeyValueStore
	io.Closer
}

// Open creates the backend named by kind. location is the file path for the
// file backend and the connection URL for redis; memory ignores it.
func Open(kind, location string) (Backend, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindFile:
		return NewFileStore(location)
	case KindRedis:
		return NewRedisStore(location)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
