// Package suite runs a directory of benchmark queries against one database
// and keeps a result directory up to date: one sample file per query, the
// metadata of the setup that produced them and a summary.
package suite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/clientbench/internal/benchmark"
	"github.com/wesleyorama2/clientbench/internal/db"
	"github.com/wesleyorama2/clientbench/internal/metrics"
	"github.com/wesleyorama2/clientbench/internal/output"
	"github.com/wesleyorama2/clientbench/internal/runner"
	"github.com/wesleyorama2/clientbench/internal/summary"
)

// MetadataFile records what produced the results of a directory.
const MetadataFile = "metadata.txt"

// ErrMetadataMismatch is returned when a result directory was produced by a
// different setup.
var ErrMetadataMismatch = errors.New("result directory was produced by a different setup")

// Status of one query of a suite.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// QueryResult is the outcome of one query file.
type QueryResult struct {
	Name    string
	File    string
	Status  Status
	Samples int64
	Err     error
}

// Result is the outcome of a suite run.
type Result struct {
	RunID   uuid.UUID
	Queries []QueryResult
	Summary []summary.Stats
}

// Success is true when no query failed.
func (r *Result) Success() bool {
	for _, q := range r.Queries {
		if q.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Runner executes a suite.
type Runner struct {
	Config  *Config
	Version string

	// Console receives one status line per query; nil discards them.
	Console   io.Writer
	Formatter *output.Formatter

	Metrics *metrics.Collector
	Logger  logrus.FieldLogger

	// Open overrides db.Open.
	Open func(rawURL string, opts db.Options) (db.Connector, error)
}

// Run executes every query of the suite. Individual query failures are
// collected and returned together after the summary has been regenerated;
// setup failures stop the suite immediately.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.New()}
	logger := r.logger().WithField("run", res.RunID.String())
	cfg := r.Config

	open := r.Open
	if open == nil {
		open = db.Open
	}
	connector, err := open(cfg.Database, db.Options{FetchSize: cfg.FetchSize})
	if err != nil {
		return res, err
	}
	defer connector.Close()

	files, err := cfg.QueryFiles()
	if err != nil {
		return res, err
	}

	if cfg.Setup != "" {
		if err := runSetup(ctx, connector, cfg.Setup); err != nil {
			return res, errors.Wrap(err, "setup")
		}
		logger.WithField("file", cfg.Setup).Info("setup complete")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return res, errors.Wrap(err, "create output directory")
	}

	meta, err := r.metadata(ctx, connector)
	if err != nil {
		return res, err
	}
	if err := checkMetadata(filepath.Join(cfg.OutputDir, MetadataFile), meta); err != nil {
		return res, err
	}

	var failures *multierror.Error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			failures = multierror.Append(failures, errors.Wrap(err, "suite interrupted"))
			break
		}
		q := r.runQuery(ctx, connector, file, logger)
		res.Queries = append(res.Queries, q)
		if q.Err != nil {
			failures = multierror.Append(failures, errors.Wrap(q.Err, q.Name))
		}
	}

	stats, err := summary.WriteDir(cfg.OutputDir)
	if err != nil {
		failures = multierror.Append(failures, err)
	}
	res.Summary = stats

	return res, failures.ErrorOrNil()
}

func (r *Runner) runQuery(ctx context.Context, connector db.Connector, file string, logger logrus.FieldLogger) QueryResult {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	q := QueryResult{Name: name, File: file}
	logger = logger.WithField("query", name)
	target := filepath.Join(r.Config.OutputDir, name+summary.SampleExt)

	if _, err := os.Stat(target); err == nil && !r.Config.Overwrite {
		q.Status = StatusSkipped
		r.print(r.formatter().FormatNotice("%s skipped, %s exists", name, filepath.Base(target)))
		logger.Debug("skipping query with existing results")
		return q
	}

	samples, err := r.measure(ctx, connector, file, target, logger)
	q.Samples = samples
	if err != nil {
		q.Status, q.Err = StatusFailed, err
		r.print(r.formatter().FormatStatus(false, "%s failed: %v", name, err))
		return q
	}
	q.Status = StatusDone
	r.print(r.formatter().FormatStatus(true, "%s %d measurements", name, samples))
	return q
}

// measure runs one query into a temporary file and moves it into place only
// if every worker succeeded.
func (r *Runner) measure(ctx context.Context, connector db.Connector, file, target string, logger logrus.FieldLogger) (int64, error) {
	spec, err := benchmark.Load(file)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create sample file")
	}
	defer os.Remove(tmp.Name())

	coord := &runner.Coordinator{
		Spec:      spec,
		Connector: connector,
		Output:    tmp,
		Duration:  r.Config.RunDuration,
		Warmup:    r.Config.WarmupEnabled(),
		BatchSize: r.Config.BatchSize,
		Metrics:   r.Metrics,
		Logger:    logger,
	}
	report, runErr := coord.Run(ctx)
	if err := tmp.Close(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "write sample file")
	}
	if runErr != nil {
		return report.Iterations(), runErr
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return report.Iterations(), errors.Wrap(err, "move sample file into place")
	}
	return report.Iterations(), nil
}

// metadata describes everything that makes results comparable.
func (r *Runner) metadata(ctx context.Context, connector db.Connector) (string, error) {
	server, ok, err := db.ServerVersion(ctx, connector)
	if err != nil {
		return "", errors.Wrap(err, "query server version")
	}
	if !ok {
		server = "not available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Benchmark version: %s\n", r.Version)
	fmt.Fprintf(&b, "Duration: %s\n", r.Config.RunDuration)
	fmt.Fprintf(&b, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(&b, "Driver: %s\n", connector.Driver())
	fmt.Fprintf(&b, "Server version: %s\n", server)
	return b.String(), nil
}

// checkMetadata writes meta to path, or verifies that an existing file
// contains it.
func checkMetadata(path, meta string) error {
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !strings.Contains(string(existing), meta) {
			return errors.Wrapf(ErrMetadataMismatch, "%s contains\n%s", path, existing)
		}
		return nil
	case os.IsNotExist(err):
		return errors.Wrap(os.WriteFile(path, []byte(meta), 0o644), "write metadata")
	default:
		return errors.Wrap(err, "read metadata")
	}
}

func (r *Runner) print(line string) {
	if r.Console != nil {
		io.WriteString(r.Console, line)
	}
}

func (r *Runner) formatter() *output.Formatter {
	if r.Formatter == nil {
		r.Formatter = output.NewFormatter(true)
	}
	return r.Formatter
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Logger == nil {
		return logrus.StandardLogger()
	}
	return r.Logger
}
