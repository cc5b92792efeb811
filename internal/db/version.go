package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// ServerVersion asks the server behind c for its version on a short-lived
// connection. ok is false when the adapter does not implement Versioner.
func ServerVersion(ctx context.Context, c Connector) (version string, ok bool, err error) {
	v, ok := c.(Versioner)
	if !ok {
		return "", false, nil
	}

	conn, err := c.Connect(ctx)
	if err != nil {
		return "", true, err
	}
	defer conn.Close()

	rows, err := conn.Query(ctx, v.VersionQuery())
	if err != nil {
		return "", true, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", true, err
		}
		return "", true, errors.New("version query returned no rows")
	}
	var s sql.NullString
	if err := rows.Scan(&s); err != nil {
		return "", true, err
	}
	return s.String, true, rows.Err()
}
