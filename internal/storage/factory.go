package storage

import (
	"errors"
	"fmt"
)

// Storage types accepted by storage.type.
const (
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeWebSocket = "websocket"
	TypeNone      = "none"
)

// ErrUnknownType is returned for an unsupported storage.type.
var ErrUnknownType = errors.New("unknown storage type")

// Constructors builds one backend per storage type. Backends live in
// sub-packages that import this one, so the caller wires them in.
type Constructors map[string]func() (Backend, error)

// New picks the constructor for typ. TypeNone yields a nil backend.
func (c Constructors) New(typ string) (Backend, error) {
	if typ == TypeNone {
		return nil, nil
	}
	build, ok := c[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	b, err := build()
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", typ, err)
	}
	return b, nil
}
