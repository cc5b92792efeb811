package runner

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/clientbench/internal/benchmark"
	"github.com/wesleyorama2/clientbench/internal/db"
	"github.com/wesleyorama2/clientbench/internal/metrics"
	"github.com/wesleyorama2/clientbench/internal/session"
	"github.com/wesleyorama2/clientbench/internal/sink"
)

// Report collects the outcome of every worker of a run.
type Report struct {
	Outcomes []Outcome
	SinkErr  error
	Elapsed  time.Duration
}

// Success is true when every worker succeeded and the output was written
// completely.
func (r *Report) Success() bool {
	if r.SinkErr != nil {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// Iterations is the total number of recorded samples.
func (r *Report) Iterations() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.Iterations
	}
	return n
}

// Failed returns the outcomes of workers that stopped on an error.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Coordinator starts one worker per Spec.Parallel, each with its own session,
// and streams their samples to Output.
type Coordinator struct {
	Spec      *benchmark.Spec
	Connector db.Connector
	Output    io.Writer
	Duration  time.Duration
	Warmup    bool
	BatchSize int
	Metrics   *metrics.Collector
	Logger    logrus.FieldLogger

	// NewExecutor overrides session construction.
	NewExecutor func(id int) Executor
}

// Run blocks until every worker has finished and the output is flushed. The
// returned error aggregates every worker failure and the sink error; it is nil
// exactly when Report.Success is true.
//
// Cancelling ctx does not stop workers early. It interrupts the output writer,
// which then discards what is queued and makes the run fail.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	parallel := c.Spec.Parallel
	if parallel < 1 {
		parallel = 1
	}

	opts := []sink.Option{sink.WithBatchSize(c.BatchSize)}
	if c.Metrics != nil {
		opts = append(opts, sink.WithObserver(c.Metrics))
	}
	out := sink.Open(ctx, c.Output, opts...)

	logger.WithFields(logrus.Fields{
		"parallel": parallel,
		"duration": c.Duration,
		"options":  c.Spec.Keywords(),
	}).Info("starting workers")

	report := &Report{Outcomes: make([]Outcome, parallel)}
	workerCtx := context.WithoutCancel(ctx)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		w := &Worker{
			ID:        i,
			Session:   c.executor(i, logger),
			Submitter: out.NewSubmitter(),
			Duration:  c.Duration,
			Warmup:    c.Warmup,
			Metrics:   c.Metrics,
			Logger:    logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Outcomes[w.ID] = w.Run(workerCtx)
		}()
	}
	wg.Wait()
	report.Elapsed = time.Since(start)

	report.SinkErr = out.Close()

	var result *multierror.Error
	for _, o := range report.Outcomes {
		if o.Err != nil {
			result = multierror.Append(result, errors.Wrapf(o.Err, "worker %d", o.WorkerID))
		}
	}
	if report.SinkErr != nil {
		result = multierror.Append(result, report.SinkErr)
	}

	logger.WithFields(logrus.Fields{
		"iterations": report.Iterations(),
		"failed":     len(report.Failed()),
		"elapsed":    report.Elapsed,
	}).Info("workers finished")

	return report, result.ErrorOrNil()
}

func (c *Coordinator) executor(id int, logger logrus.FieldLogger) Executor {
	if c.NewExecutor != nil {
		return c.NewExecutor(id)
	}
	return session.New(c.Spec, c.Connector, session.WithLogger(logger.WithField("worker", id)))
}
