// Package dbtest provides a scriptable in-memory database for tests of code
// that drives the db interfaces. It counts every connect, disconnect, prepare
// and metadata read so tests can assert on session lifecycles.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wesleyorama2/clientbench/internal/db"
)

// Result is the table returned by every query.
type Result struct {
	Columns []db.Column
	Rows    [][]any
}

// Stats is a snapshot of the calls a Connector has seen.
type Stats struct {
	Connects      int
	Disconnects   int
	Prepares      int
	StmtCloses    int
	Queries       int
	ColumnReads   int
	OpenCursors   int
	OpenConns     int
	OpenStmts     int
	ClosedCursors int
}

// Connector is a fake db.Connector. Its fields may be changed between calls,
// but not concurrently with them.
type Connector struct {
	Result Result

	// ResultFunc, when set, overrides Result. call counts queries from 1 across
	// all connections.
	ResultFunc func(call int) (Result, error)

	// Delay is slept inside every query to make timings observable.
	Delay time.Duration

	// ConnectDelay is slept inside every Connect.
	ConnectDelay time.Duration

	// Version is the single row returned for VersionQuery. Version queries are
	// not counted in Stats.
	Version string

	ConnectErr error
	PrepareErr error

	mu    sync.Mutex
	stats Stats
}

// New returns a Connector serving result.
func New(result Result) *Connector {
	return &Connector{Result: result, Version: "fake 1.0"}
}

// IntColumn is a shorthand for a column with an integer type.
func IntColumn(name string) db.Column {
	return db.Column{Name: name, DatabaseType: "INTEGER"}
}

// TextColumn is a shorthand for a column with a text type.
func TextColumn(name string) db.Column {
	return db.Column{Name: name, DatabaseType: "TEXT"}
}

// IntRows builds a single-column result with values 1..n.
func IntRows(n int) Result {
	r := Result{Columns: []db.Column{IntColumn("n")}}
	for i := 1; i <= n; i++ {
		r.Rows = append(r.Rows, []any{int64(i)})
	}
	return r
}

// Stats returns a snapshot of the counters.
func (c *Connector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Connector) Connect(ctx context.Context) (db.Conn, error) {
	if c.ConnectDelay > 0 {
		time.Sleep(c.ConnectDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	c.stats.Connects++
	c.stats.OpenConns++
	return &conn{owner: c}, nil
}

func (c *Connector) Driver() string {
	return "fake"
}

func (c *Connector) VersionQuery() string {
	return "SELECT version()"
}

func (c *Connector) Close() error {
	return nil
}

func (c *Connector) query(ctx context.Context) (db.Rows, error) {
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Queries++
	result := c.Result
	if c.ResultFunc != nil {
		var err error
		if result, err = c.ResultFunc(c.stats.Queries); err != nil {
			return nil, err
		}
	}
	c.stats.OpenCursors++
	return &rows{owner: c, result: result, pos: -1}, nil
}

type conn struct {
	owner  *Connector
	closed bool
}

func (c *conn) Query(ctx context.Context, query string) (db.Rows, error) {
	if c.closed {
		return nil, errors.New("dbtest: query on closed connection")
	}
	if query == c.owner.VersionQuery() {
		return &rows{
			owner: c.owner,
			result: Result{
				Columns: []db.Column{TextColumn("version")},
				Rows:    [][]any{{c.owner.Version}},
			},
			pos:       -1,
			uncounted: true,
		}, nil
	}
	return c.owner.query(ctx)
}

func (c *conn) Prepare(_ context.Context, _ string) (db.Stmt, error) {
	if c.closed {
		return nil, errors.New("dbtest: prepare on closed connection")
	}
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	if c.owner.PrepareErr != nil {
		return nil, c.owner.PrepareErr
	}
	c.owner.stats.Prepares++
	c.owner.stats.OpenStmts++
	return &stmt{conn: c}, nil
}

func (c *conn) Close() error {
	if c.closed {
		return errors.New("dbtest: connection closed twice")
	}
	c.closed = true
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	c.owner.stats.Disconnects++
	c.owner.stats.OpenConns--
	return nil
}

type stmt struct {
	conn   *conn
	closed bool
}

func (s *stmt) Query(ctx context.Context) (db.Rows, error) {
	if s.closed || s.conn.closed {
		return nil, errors.New("dbtest: query on closed statement")
	}
	return s.conn.owner.query(ctx)
}

func (s *stmt) Close() error {
	if s.closed {
		return errors.New("dbtest: statement closed twice")
	}
	s.closed = true
	s.conn.owner.mu.Lock()
	defer s.conn.owner.mu.Unlock()
	s.conn.owner.stats.StmtCloses++
	s.conn.owner.stats.OpenStmts--
	return nil
}

type rows struct {
	owner     *Connector
	result    Result
	pos       int
	closed    bool
	uncounted bool
}

func (r *rows) Next() bool {
	if r.closed || r.pos+1 >= len(r.result.Rows) {
		return false
	}
	r.pos++
	return true
}

func (r *rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.result.Rows) {
		return errors.New("dbtest: scan without a current row")
	}
	row := r.result.Rows[r.pos]
	if len(dest) != len(row) {
		return errors.Errorf("dbtest: expected %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return errors.Wrapf(err, "dbtest: column %d", i)
		}
	}
	return nil
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *[]byte:
		switch x := v.(type) {
		case nil:
			*d = nil
		case []byte:
			*d = append([]byte{}, x...)
		case string:
			*d = append([]byte{}, x...)
		default:
			return fmt.Errorf("cannot scan %T into *[]byte", v)
		}
		return nil
	case *any:
		*d = v
		return nil
	case sql.Scanner:
		return d.Scan(v)
	}
	return fmt.Errorf("unsupported destination %T", dest)
}

func (r *rows) Columns() ([]db.Column, error) {
	if r.uncounted {
		return r.result.Columns, nil
	}
	r.owner.mu.Lock()
	defer r.owner.mu.Unlock()
	r.owner.stats.ColumnReads++
	return r.result.Columns, nil
}

func (r *rows) Err() error {
	return nil
}

func (r *rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.uncounted {
		return nil
	}
	r.owner.mu.Lock()
	defer r.owner.mu.Unlock()
	r.owner.stats.OpenCursors--
	r.owner.stats.ClosedCursors++
	return nil
}
