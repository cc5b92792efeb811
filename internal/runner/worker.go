// Package runner drives benchmark sessions until a deadline and collects
// their outcomes.
package runner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/clientbench/internal/metrics"
	"github.com/wesleyorama2/clientbench/internal/session"
)

// Executor runs one iteration at a time. *session.Session implements it.
type Executor interface {
	Execute(ctx context.Context) (session.Result, error)
	Release() error
}

// SampleSubmitter receives the latency of every timed iteration.
// *sink.Submitter implements it.
type SampleSubmitter interface {
	Submit(d time.Duration)
	Flush()
}

// Outcome is the result of one worker.
type Outcome struct {
	WorkerID   int
	Iterations int64
	Err        error
}

// Failure kinds used for metrics labels.
const (
	FailureValidation = "validation"
	FailureExecution  = "execution"
	FailureRelease    = "release"
)

// FailureKind classifies a worker error.
func FailureKind(err error) string {
	var vErr *session.ValidationError
	if errors.As(err, &vErr) {
		return FailureValidation
	}
	return FailureExecution
}

// Worker measures one session until its deadline.
type Worker struct {
	ID        int
	Session   Executor
	Submitter SampleSubmitter

	// Duration is measured from the start of Run. Zero or negative means no
	// iterations at all.
	Duration time.Duration

	// Warmup executes the query once before the deadline loop. The warm-up
	// resolves result columns and validates, but its latency is not recorded.
	Warmup bool

	Metrics *metrics.Collector
	Logger  logrus.FieldLogger
}

// Run executes iterations until the deadline passes or an iteration fails.
// The submitter is flushed and the session released on every return path.
func (w *Worker) Run(ctx context.Context) (out Outcome) {
	out.WorkerID = w.ID
	logger := w.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("worker", w.ID)

	w.Metrics.WorkerStarted()
	defer func() {
		w.Submitter.Flush()
		if err := w.Session.Release(); err != nil {
			if out.Err == nil {
				out.Err = errors.Wrap(err, "release session")
				w.Metrics.WorkerFailed(FailureRelease)
			} else {
				logger.WithError(err).Warn("release session after failure")
			}
		}
		w.Metrics.WorkerStopped()
		logger.WithField("iterations", out.Iterations).Debug("worker finished")
	}()

	deadline := time.Now().Add(w.Duration)

	if w.Warmup && time.Now().Before(deadline) {
		if _, err := w.Session.Execute(ctx); err != nil {
			out.Err = w.fail(logger, errors.WithMessage(err, "warm-up"))
			return out
		}
	}

	for time.Now().Before(deadline) {
		res, err := w.Session.Execute(ctx)
		if err != nil {
			out.Err = w.fail(logger, err)
			return out
		}
		w.Submitter.Submit(res.Elapsed)
		out.Iterations++
		w.Metrics.IterationDone()
	}
	return out
}

func (w *Worker) fail(logger logrus.FieldLogger, err error) error {
	kind := FailureKind(err)
	w.Metrics.WorkerFailed(kind)
	logger.WithError(err).WithField("kind", kind).Error("worker stopped")
	return err
}
