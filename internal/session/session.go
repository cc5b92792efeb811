// Package session executes one benchmark iteration at a time on a single
// database connection owned by one worker.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/clientbench/internal/benchmark"
	"github.com/wesleyorama2/clientbench/internal/column"
	"github.com/wesleyorama2/clientbench/internal/db"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateStatementReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateStatementReady:
		return "statement-ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the measurement of one execution.
type Result struct {
	Elapsed time.Duration
	Counts  column.Counts
}

// ValidationError reports an observed count that differs from the expected one.
type ValidationError struct {
	What     string
	Expected int64
	Observed int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("expected %d %s, got %d", e.Expected, e.What, e.Observed)
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry replaces the default column checkers.
func WithRegistry(r column.Registry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Session is not safe for concurrent use.
type Session struct {
	spec      *benchmark.Spec
	connector db.Connector
	registry  column.Registry
	logger    logrus.FieldLogger

	state State
	conn  db.Conn
	stmt  db.Stmt

	// Resolved on the first execution and kept across reconnects.
	kinds     []column.Kind
	validator *column.RowValidator
}

// New returns a disconnected Session. Nothing is opened until Execute.
func New(spec *benchmark.Spec, connector db.Connector, opts ...Option) *Session {
	s := &Session{
		spec:      spec,
		connector: connector,
		registry:  column.DefaultRegistry(),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Kinds returns the resolved column kinds, nil before the first execution.
func (s *Session) Kinds() []column.Kind {
	return s.kinds
}

// Execute runs the query once and times it from submission until the last
// row has been read and the cursor closed. Connecting and preparing are not
// timed, except under Reconnect where the teardown of the previous
// connection, the new connection and the prepare are part of every sample.
// A failed execution leaves the session disconnected; a *ValidationError
// leaves it usable.
func (s *Session) Execute(ctx context.Context) (Result, error) {
	var start time.Time
	if s.spec.Reconnect {
		start = time.Now()
		if s.state != StateDisconnected {
			if err := s.teardown(); err != nil {
				return Result{}, errors.Wrap(err, "reconnect")
			}
		}
	}

	if err := s.ready(ctx); err != nil {
		s.abandon()
		return Result{}, err
	}

	if !s.spec.Reconnect {
		start = time.Now()
	}
	rows, err := s.query(ctx)
	if err != nil {
		s.abandon()
		return Result{}, errors.Wrap(err, "execute query")
	}
	counts, err := s.consume(rows)
	if closeErr := rows.Close(); err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "close result")
	}
	elapsed := time.Since(start)
	if err != nil {
		s.abandon()
		return Result{}, err
	}

	res := Result{Elapsed: elapsed, Counts: counts}
	return res, s.check(counts)
}

// Release closes the statement and the connection. It may be called in any
// state, any number of times.
func (s *Session) Release() error {
	return s.teardown()
}

func (s *Session) ready(ctx context.Context) error {
	if s.state == StateDisconnected {
		conn, err := s.connector.Connect(ctx)
		if err != nil {
			return errors.Wrap(err, "connect")
		}
		s.conn = conn
		s.state = StateConnected
		s.logger.WithField("driver", s.connector.Driver()).Debug("session connected")
	}
	if s.spec.Prepare && s.state == StateConnected {
		stmt, err := s.conn.Prepare(ctx, s.spec.Query)
		if err != nil {
			return errors.Wrap(err, "prepare")
		}
		s.stmt = stmt
		s.state = StateStatementReady
	}
	return nil
}

func (s *Session) query(ctx context.Context) (db.Rows, error) {
	if s.state == StateStatementReady {
		return s.stmt.Query(ctx)
	}
	return s.conn.Query(ctx, s.spec.Query)
}

func (s *Session) consume(rows db.Rows) (column.Counts, error) {
	if s.validator == nil {
		cols, err := rows.Columns()
		if err != nil {
			return column.Counts{}, errors.Wrap(err, "read result metadata")
		}
		kinds, err := column.Resolve(cols, s.spec.AllText)
		if err != nil {
			return column.Counts{}, err
		}
		validator, err := column.NewRowValidator(kinds, s.registry)
		if err != nil {
			return column.Counts{}, err
		}
		s.kinds, s.validator = kinds, validator
		s.logger.WithField("kinds", kinds).Debug("resolved result columns")
	}
	return s.validator.Consume(rows)
}

func (s *Session) check(c column.Counts) error {
	expect := []struct {
		what     string
		expected *int64
		observed int64
	}{
		{"rows", s.spec.ExpectedRows, c.Rows},
		{"nulls", s.spec.ExpectedNulls, c.Nulls},
		{"hits", s.spec.ExpectedHits, c.Hits},
	}
	for _, e := range expect {
		if e.expected != nil && *e.expected != e.observed {
			return &ValidationError{What: e.what, Expected: *e.expected, Observed: e.observed}
		}
	}
	return nil
}

// abandon tears down after a failure. Teardown errors are logged, not returned.
func (s *Session) abandon() {
	if err := s.teardown(); err != nil {
		s.logger.WithError(err).Debug("teardown after failure")
	}
}

func (s *Session) teardown() error {
	var result *multierror.Error
	if s.stmt != nil {
		if err := s.stmt.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "close statement"))
		}
		s.stmt = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "disconnect"))
		}
		s.conn = nil
		s.logger.Debug("session disconnected")
	}
	s.state = StateDisconnected
	return result.ErrorOrNil()
}
