// Package db defines the narrow database interface the benchmark drives and
// the adapters that implement it on top of real drivers.
//
// One Conn is one physical connection. Nothing in this package pools
// connections on behalf of the caller: closing a Conn disconnects it.
package db

import (
	"context"
)

// Column describes one result column as reported by the driver.
type Column struct {
	Name         string
	DatabaseType string
}

// Options are applied to every connection a Connector opens.
type Options struct {
	// FetchSize is the requested number of rows per round trip. Zero leaves the
	// driver default in place.
	FetchSize int
}

// Connector opens connections to one database.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
	// Driver names the adapter, e.g. "pgx" or "mysql".
	Driver() string
	Close() error
}

// Versioner is implemented by connectors that know how to ask the server for
// its version.
type Versioner interface {
	VersionQuery() string
}

// Conn is a single database session. It is not safe for concurrent use.
type Conn interface {
	// Query runs an ad-hoc query without keeping a statement around.
	Query(ctx context.Context, query string) (Rows, error)
	Prepare(ctx context.Context, query string) (Stmt, error)
	Close() error
}

// Stmt is a prepared statement bound to the Conn that created it.
type Stmt interface {
	Query(ctx context.Context) (Rows, error)
	Close() error
}

// Rows is a forward-only cursor.
type Rows interface {
	Next() bool
	// Scan copies the current row into dest, one destination per column.
	Scan(dest ...any) error
	Columns() ([]Column, error)
	Err() error
	Close() error
}
