package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/clientbench/internal/benchmark"
	"github.com/wesleyorama2/clientbench/internal/db/dbtest"
	"github.com/wesleyorama2/clientbench/internal/metrics"
	"github.com/wesleyorama2/clientbench/internal/session"
	"github.com/wesleyorama2/clientbench/internal/sink"
)

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

// scriptedExecutor returns results from a function of the call number
// (starting at 1) and counts releases.
type scriptedExecutor struct {
	calls    int
	releases int
	next     func(call int) (session.Result, error)
	release  error
}

func (e *scriptedExecutor) Execute(context.Context) (session.Result, error) {
	e.calls++
	return e.next(e.calls)
}

func (e *scriptedExecutor) Release() error {
	e.releases++
	return e.release
}

type recordingSubmitter struct {
	samples []time.Duration
	flushes int
}

func (r *recordingSubmitter) Submit(d time.Duration) { r.samples = append(r.samples, d) }
func (r *recordingSubmitter) Flush()                 { r.flushes++ }

func always(d time.Duration) func(int) (session.Result, error) {
	return func(int) (session.Result, error) {
		return session.Result{Elapsed: d}, nil
	}
}

func TestWorker_DeadlineInThePast(t *testing.T) {
	exec := &scriptedExecutor{next: always(time.Millisecond)}
	sub := &recordingSubmitter{}
	w := &Worker{
		Session:   exec,
		Submitter: sub,
		Duration:  -time.Second,
		Warmup:    true,
		Logger:    quietLogger(),
	}

	out := w.Run(context.Background())

	require.NoError(t, out.Err)
	assert.Zero(t, out.Iterations)
	assert.Zero(t, exec.calls)
	assert.Empty(t, sub.samples)
	assert.Equal(t, 1, sub.flushes)
	assert.Equal(t, 1, exec.releases)
}

func TestWorker_ZeroDuration(t *testing.T) {
	exec := &scriptedExecutor{next: always(time.Millisecond)}
	w := &Worker{Session: exec, Submitter: &recordingSubmitter{}, Logger: quietLogger()}

	out := w.Run(context.Background())
	require.NoError(t, out.Err)
	assert.Zero(t, exec.calls)
}

func TestWorker_WarmupSampleIsNotRecorded(t *testing.T) {
	exec := &scriptedExecutor{next: func(call int) (session.Result, error) {
		if call == 4 {
			return session.Result{}, errors.New("stop")
		}
		return session.Result{Elapsed: time.Duration(call)}, nil
	}}
	sub := &recordingSubmitter{}
	w := &Worker{
		ID:        3,
		Session:   exec,
		Submitter: sub,
		Duration:  time.Minute,
		Warmup:    true,
		Logger:    quietLogger(),
	}

	out := w.Run(context.Background())
	require.Error(t, out.Err)
	assert.Equal(t, 3, out.WorkerID)
	assert.Equal(t, []time.Duration{2, 3}, sub.samples)
	assert.EqualValues(t, 2, out.Iterations)
}

func TestWorker_RunsUntilDeadline(t *testing.T) {
	exec := &scriptedExecutor{next: func(int) (session.Result, error) {
		time.Sleep(time.Millisecond)
		return session.Result{Elapsed: time.Millisecond}, nil
	}}
	sub := &recordingSubmitter{}
	c := metrics.New()
	w := &Worker{
		Session:   exec,
		Submitter: sub,
		Duration:  30 * time.Millisecond,
		Metrics:   c,
		Logger:    quietLogger(),
	}

	start := time.Now()
	out := w.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, out.Err)
	assert.Positive(t, out.Iterations)
	assert.Len(t, sub.samples, int(out.Iterations))
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Equal(t, 1, sub.flushes)
	assert.Equal(t, 1, exec.releases)
}

func TestWorker_ValidationFailureKeepsEarlierSamples(t *testing.T) {
	fake := dbtest.New(dbtest.IntRows(5))
	fake.ResultFunc = func(call int) (dbtest.Result, error) {
		if call == 6 {
			return dbtest.IntRows(4), nil
		}
		return dbtest.IntRows(5), nil
	}
	expected := int64(5)
	spec := &benchmark.Spec{Query: "SELECT n", Parallel: 1, ExpectedRows: &expected}

	var buf bytes.Buffer
	s := sink.Open(context.Background(), &buf, sink.WithBatchSize(2))
	w := &Worker{
		Session:   session.New(spec, fake, session.WithLogger(quietLogger())),
		Submitter: s.NewSubmitter(),
		Duration:  time.Minute,
		Logger:    quietLogger(),
	}

	out := w.Run(context.Background())
	require.NoError(t, s.Close())

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "5")
	assert.Contains(t, out.Err.Error(), "4")
	assert.Equal(t, FailureValidation, FailureKind(out.Err))
	assert.EqualValues(t, 5, out.Iterations)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, 0, fake.Stats().OpenConns)
}

func TestWorker_ReleasedAfterFirstIterationFailure(t *testing.T) {
	fake := dbtest.New(dbtest.IntRows(1))
	fake.ResultFunc = func(int) (dbtest.Result, error) {
		return dbtest.Result{}, errors.New("permission denied")
	}
	spec := &benchmark.Spec{Query: "SELECT n", Parallel: 1, Prepare: true}
	sub := &recordingSubmitter{}
	w := &Worker{
		Session:   session.New(spec, fake, session.WithLogger(quietLogger())),
		Submitter: sub,
		Duration:  time.Minute,
		Warmup:    true,
		Logger:    quietLogger(),
	}

	out := w.Run(context.Background())
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "warm-up")
	assert.Equal(t, FailureExecution, FailureKind(out.Err))
	assert.Empty(t, sub.samples)
	assert.Equal(t, 1, sub.flushes)

	stats := fake.Stats()
	assert.Equal(t, 0, stats.OpenConns)
	assert.Equal(t, 0, stats.OpenStmts)
}

func TestWorker_ReleaseError(t *testing.T) {
	exec := &scriptedExecutor{next: always(1), release: errors.New("broken pipe")}
	w := &Worker{Session: exec, Submitter: &recordingSubmitter{}, Duration: time.Millisecond, Logger: quietLogger()}

	out := w.Run(context.Background())
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "release session: broken pipe")
}

func TestWorker_ReleaseErrorDoesNotMaskFailure(t *testing.T) {
	exec := &scriptedExecutor{
		next:    func(int) (session.Result, error) { return session.Result{}, errors.New("timeout") },
		release: errors.New("broken pipe"),
	}
	w := &Worker{Session: exec, Submitter: &recordingSubmitter{}, Duration: time.Minute, Logger: quietLogger()}

	out := w.Run(context.Background())
	require.Error(t, out.Err)
	assert.Equal(t, "timeout", out.Err.Error())
}
