package suite

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/wesleyorama2/clientbench/internal/db"
)

// runSetup executes the statements of a setup script on a fresh connection.
func runSetup(ctx context.Context, connector db.Connector, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read setup script")
	}

	conn, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for i, stmt := range splitStatements(string(script)) {
		rows, err := conn.Query(ctx, stmt)
		if err != nil {
			return errors.Wrapf(err, "statement %d", i+1)
		}
		for rows.Next() {
		}
		if err := rows.Close(); err != nil {
			return errors.Wrapf(err, "statement %d", i+1)
		}
	}
	return nil
}

// splitStatements splits a script at semicolons that end a line. Lines that
// are only comments are dropped.
func splitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return out
}
