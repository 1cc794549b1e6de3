// Package database holds timeout conventions shared by the event store
// implementations.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds read queries such as the latest-events query.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds single inserts from the storage consumer.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMigrationTimeout bounds schema bootstrap at startup.
	DefaultMigrationTimeout = 60 * time.Second
)

// QueryContext creates a context with DefaultQueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext creates a context with DefaultWriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}

// MigrationContext creates a context with DefaultMigrationTimeout.
func MigrationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultMigrationTimeout)
}
