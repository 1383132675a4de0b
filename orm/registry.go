package orm

import (
	"reflect"
	"sync"

	"github.com/leftmike/miniorm/sql"
)

// The process wide registry of row types: one shared manager per row type,
// created at registration and read mostly afterward.
var (
	registryMutex sync.Mutex
	registry      = map[reflect.Type]*Manager{}
)

// Register registers the row type T with its engine and table type and
// returns the type's shared manager. Registering a row type twice is a
// contract violation.
func Register[T any](eng sql.Engine, tt *sql.TableType) (*Manager, error) {
	rec, ok := any(new(T)).(Record)
	if !ok {
		contractPanic("orm: register %s: row structs must embed orm.Model",
			reflect.TypeOf((*T)(nil)).Elem().Name())
	}

	m, err := NewManager(eng, tt, rec)
	if err != nil {
		return nil, err
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if _, ok := registry[typ]; ok {
		contractPanic("orm: register %s: already registered", typ.Name())
	}
	registry[typ] = m
	return m, nil
}

// MustRegister is Register, panicking on error; it is intended for use at
// program initialization.
func MustRegister[T any](eng sql.Engine, tt *sql.TableType) *Manager {
	m, err := Register[T](eng, tt)
	if err != nil {
		panic(err)
	}
	return m
}

// Objects returns the shared manager registered for the row type T; using an
// unregistered row type is a contract violation.
func Objects[T any]() *Manager {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	typ := reflect.TypeOf((*T)(nil)).Elem()
	m, ok := registry[typ]
	if !ok {
		contractPanic("orm: %s: row type is not registered", typ.Name())
	}
	return m
}

func managerFor(rec Record) *Manager {
	typ := reflect.TypeOf(rec)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	m, ok := registry[typ]
	if !ok {
		contractPanic("orm: %s: row type is not registered", typ.Name())
	}
	return m
}
