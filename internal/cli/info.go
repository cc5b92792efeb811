package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/clientbench/internal/db"
	"github.com/wesleyorama2/clientbench/internal/output"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info [DB_URL]",
		Short: "Show the benchmark environment and, given a URL, the database server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL := ""
			if len(args) == 1 {
				dbURL = args[0]
			}
			return a.info(cmd.Context(), dbURL)
		},
	}
}

func (a *app) info(ctx context.Context, dbURL string) error {
	fields := []output.Field{
		{Label: "clientbench", Value: version},
		{Label: "go", Value: runtime.Version()},
		{Label: "platform", Value: runtime.GOOS + "/" + runtime.GOARCH},
		{Label: "cpus", Value: fmt.Sprint(runtime.NumCPU())},
		{Label: "clock resolution", Value: clockResolution(200).String()},
		{Label: "drivers", Value: strings.Join(db.Schemes(), ", ")},
	}

	if dbURL != "" {
		connector, err := db.Open(dbURL, db.Options{})
		if err != nil {
			return err
		}
		defer connector.Close()

		fields = append(fields, output.Field{Label: "driver", Value: connector.Driver()})
		server, ok, err := db.ServerVersion(ctx, connector)
		switch {
		case err != nil:
			return err
		case ok:
			fields = append(fields, output.Field{Label: "server", Value: server})
		default:
			fields = append(fields, output.Field{Label: "server", Value: "not available"})
		}
	}

	io.WriteString(a.stdout, a.formatter.FormatFields(fields))
	return nil
}

// clockResolution estimates the smallest observable step of the monotonic
// clock from n consecutive readings.
func clockResolution(n int) time.Duration {
	best := time.Duration(0)
	prev := time.Now()
	for i := 0; i < n; i++ {
		now := time.Now()
		for now.Sub(prev) == 0 {
			now = time.Now()
		}
		if d := now.Sub(prev); best == 0 || d < best {
			best = d
		}
		prev = now
	}
	return best
}
