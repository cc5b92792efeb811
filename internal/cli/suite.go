package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/clientbench/internal/metrics"
	"github.com/wesleyorama2/clientbench/internal/suite"
)

func newSuiteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Benchmark every query of a suite file into a result directory",
		Long: `Run every query file selected by a suite file and keep one sample file per
query in the output directory. Queries with existing results are skipped
unless --overwrite is given. The directory also receives metadata.txt, which
must match on later runs, and a regenerated summary.txt.

Example suite file:

  database: postgres://bench@localhost/tpch
  duration: 30
  outputDir: results/pgx
  setup: queries/_setup.sql
  queries:
    - queries/[a-z]*.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.suite(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringP("config", "c", "suite.yaml", "Suite file")
	f.Bool("overwrite", false, "Measure again queries that already have results")
	f.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9100")
	return cmd
}

func (a *app) suite(ctx context.Context) error {
	cfg, err := suite.LoadConfig(a.v.GetString("config"))
	if err != nil {
		return err
	}
	if a.v.GetBool("overwrite") {
		cfg.Overwrite = true
	}

	r := &suite.Runner{
		Config:    cfg,
		Version:   version,
		Console:   a.stdout,
		Formatter: a.formatter,
		Logger:    a.logger,
	}
	if addr := a.v.GetString("metrics-addr"); addr != "" {
		r.Metrics = metrics.New()
		srv, err := metrics.Serve(addr, r.Metrics, a.logger)
		if err != nil {
			return err
		}
		defer srv.Shutdown(context.Background())
	}

	// An interrupt abandons the query being measured and skips the rest.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := r.Run(ctx)
	if err != nil {
		if res != nil && len(res.Queries) > 0 {
			a.logger.WithError(err).Error("suite finished with failures")
			return errFailed
		}
		return err
	}
	a.logger.WithField("run", res.RunID.String()).Info("suite complete")
	return nil
}
