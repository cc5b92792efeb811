// Package sink moves latency samples from many measuring goroutines to a single
// writer goroutine, so that producers never wait on output I/O.
//
// Each producer owns a Submitter which accumulates samples into a fixed-size
// batch and hands full batches to the Sink's queue. The consumer writes every
// sample of a batch in order, one integer nanosecond value per line. Samples of
// one Submitter keep their submission order; batches of different Submitters
// interleave in hand-off order.
package sink

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultBatchSize is the number of samples a Submitter buffers before hand-off.
const DefaultBatchSize = 1000

// ErrInterrupted is returned by Close when the consumer was cancelled before it
// could drain the queue. Output written so far is incomplete and unflushed.
var ErrInterrupted = errors.New("sample sink interrupted before draining")

// Observer is notified about queue activity. Implementations must be safe for
// concurrent use; QueueDepth is called with the sink's lock held.
type Observer interface {
	QueueDepth(batches int)
	SamplesWritten(n int)
}

// Option configures a Sink.
type Option func(*Sink)

// WithBatchSize sets the Submitter batch capacity. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(s *Sink) {
		s.observer = o
	}
}

// Sink is the consumer side. It owns the queue, the shutdown flag and the
// output writer; nothing else touches them.
type Sink struct {
	batchSize int
	observer  Observer

	mu       sync.Mutex
	queue    []*batch
	shutdown bool

	// wake holds at most one pending signal; a send never blocks.
	wake chan struct{}
	done chan struct{}

	closeOnce sync.Once
	out       *bufio.Writer
	err       error
}

// Open starts the consumer goroutine writing to w. Cancelling ctx interrupts the
// consumer: it stops without draining or flushing and Close reports ErrInterrupted.
func Open(ctx context.Context, w io.Writer, opts ...Option) *Sink {
	s := &Sink{
		batchSize: DefaultBatchSize,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		out:       bufio.NewWriterSize(w, 64*1024),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run(ctx)
	return s
}

// NewSubmitter returns a producer handle. A Submitter must not be shared between
// goroutines and must be flushed when its owner is done.
func (s *Sink) NewSubmitter() *Submitter {
	return &Submitter{
		sink:  s,
		batch: newBatch(s.batchSize),
	}
}

// Close requests shutdown and blocks until the consumer has drained the queue,
// flushed the writer and exited. It may be called more than once; every call
// returns the same result.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		s.signal()
	})
	<-s.done
	return s.err
}

func (s *Sink) enqueue(b *batch) {
	s.mu.Lock()
	s.queue = append(s.queue, b)
	if s.observer != nil {
		s.observer.QueueDepth(len(s.queue))
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Sink) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next blocks until a batch is available, shutdown was requested with an empty
// queue (nil, nil) or ctx is cancelled.
func (s *Sink) next(ctx context.Context) (*batch, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		if len(s.queue) > 0 {
			b := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			if s.observer != nil {
				s.observer.QueueDepth(len(s.queue))
			}
			s.mu.Unlock()
			return b, nil
		}
		if s.shutdown {
			s.mu.Unlock()
			return nil, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Sink) run(ctx context.Context) {
	defer close(s.done)

	var line []byte
	for {
		b, err := s.next(ctx)
		if err != nil {
			s.err = errors.Wrap(ErrInterrupted, err.Error())
			return
		}
		if b == nil {
			break
		}
		if s.err != nil {
			// Keep draining so the queue does not grow, but stop writing.
			continue
		}
		for _, d := range b.samples {
			line = strconv.AppendInt(line[:0], int64(d), 10)
			line = append(line, '\n')
			if _, err := s.out.Write(line); err != nil {
				s.err = errors.Wrap(err, "write samples")
				break
			}
		}
		if s.err == nil && s.observer != nil {
			s.observer.SamplesWritten(len(b.samples))
		}
	}

	if err := s.out.Flush(); err != nil && s.err == nil {
		s.err = errors.Wrap(err, "flush samples")
	}
}

// Submitter accumulates samples for one producer.
type Submitter struct {
	sink  *Sink
	batch *batch
}

// Submit records one sample. When the batch is full it is handed to the sink
// and a new one is started.
func (u *Submitter) Submit(d time.Duration) {
	u.batch.add(d)
	if u.batch.full() {
		u.Flush()
	}
}

// Flush hands off the current batch, if it holds anything.
func (u *Submitter) Flush() {
	if u.batch.empty() {
		return
	}
	b := u.batch
	u.batch = newBatch(cap(b.samples))
	u.sink.enqueue(b)
}

// pending returns the number of samples not yet handed off.
func (u *Submitter) pending() int {
	return len(u.batch.samples)
}
