// Package store defines the aggregate persistence interface. Each entity
// package (module, action, permission, role, userrole, override) defines its
// own store interface; the composite Store composes them all.
// Backends: Memory, Postgres, SQLite and MongoDB.
package store

import (
	"context"
	"errors"

	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/permission"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/userrole"
)

var (
	// ErrNotFound is wrapped by backends when a row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is wrapped by backends when a unique key is violated.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store is the aggregate persistence interface.
// A single backend implements every entity store so that multi-entity
// operations (role deletion cascading into user_roles) can share one
// transaction.
type Store interface {
	module.Store
	action.Store
	permission.Store
	role.Store
	userrole.Store
	override.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
