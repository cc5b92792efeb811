package db

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

// pgxConnector opens native pgx connections, one per session.
type pgxConnector struct {
	config *pgx.ConnConfig
}

// openPgx ignores Options.FetchSize: pgx streams rows as the server sends them.
func openPgx(_ *url.URL, raw string, _ Options) (Connector, error) {
	config, err := pgx.ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return &pgxConnector{config: config}, nil
}

func (c *pgxConnector) Connect(ctx context.Context) (Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, c.config.Copy())
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	return &pgxConn{conn: conn}, nil
}

func (c *pgxConnector) Driver() string {
	return "pgx"
}

func (c *pgxConnector) VersionQuery() string {
	return "SELECT version()"
}

func (c *pgxConnector) Close() error {
	return nil
}

type pgxConn struct {
	conn *pgx.Conn
	seq  int
}

// Query uses the simple protocol so that no statement is cached server side.
func (c *pgxConn) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := c.conn.Query(ctx, query, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows, typeMap: c.conn.TypeMap()}, nil
}

func (c *pgxConn) Prepare(ctx context.Context, query string) (Stmt, error) {
	c.seq++
	name := fmt.Sprintf("clientbench_%d", c.seq)
	if _, err := c.conn.Prepare(ctx, name, query); err != nil {
		return nil, err
	}
	return &pgxStmt{conn: c, name: name}, nil
}

func (c *pgxConn) Close() error {
	return c.conn.Close(context.Background())
}

type pgxStmt struct {
	conn *pgxConn
	name string
}

// Query executes the statement; pgx resolves a registered statement name
// passed as the SQL text to the prepared statement.
func (s *pgxStmt) Query(ctx context.Context) (Rows, error) {
	rows, err := s.conn.conn.Query(ctx, s.name)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows, typeMap: s.conn.conn.TypeMap()}, nil
}

func (s *pgxStmt) Close() error {
	if s.conn.conn.IsClosed() {
		return nil
	}
	return s.conn.conn.Deallocate(context.Background(), s.name)
}

type pgxRows struct {
	rows    pgx.Rows
	typeMap *pgtype.Map
}

func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *pgxRows) Columns() ([]Column, error) {
	fields := r.rows.FieldDescriptions()
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Name: f.Name, DatabaseType: pgTypeName(r.typeMap, f.DataTypeOID)}
	}
	return cols, nil
}

// extraPgTypes names built-in types that pgtype's default map leaves out.
// Values of these types are read in text format.
var extraPgTypes = map[uint32]string{
	pgtype.TimetzOID: "timetz",
}

func pgTypeName(m *pgtype.Map, oid uint32) string {
	if t, ok := m.TypeForOID(oid); ok {
		return t.Name
	}
	if name, ok := extraPgTypes[oid]; ok {
		return name
	}
	return fmt.Sprintf("oid:%d", oid)
}

func (r *pgxRows) Err() error {
	return r.rows.Err()
}

func (r *pgxRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}
