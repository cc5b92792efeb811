// Package metrics exposes run progress as prometheus counters. Latency is
// never aggregated here; samples go to the output stream only.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "clientbench"

// Collector holds the run metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	iterations     prometheus.Counter
	workerFailures *prometheus.CounterVec
	activeWorkers  prometheus.Gauge
	samplesWritten prometheus.Counter
	queuedBatches  prometheus.Gauge
}

// New creates a Collector on its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Number of timed query executions completed.",
		}),
		workerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_failures_total",
			Help:      "Number of workers that stopped on an error, by error kind.",
		}, []string{"kind"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Number of workers currently running.",
		}),
		samplesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_written_total",
			Help:      "Number of latency samples written to the output.",
		}),
		queuedBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_batches",
			Help:      "Number of sample batches waiting for the writer.",
		}),
	}
	c.registry.MustRegister(c.iterations, c.workerFailures, c.activeWorkers, c.samplesWritten, c.queuedBatches)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) IterationDone() {
	if c == nil {
		return
	}
	c.iterations.Inc()
}

func (c *Collector) WorkerStarted() {
	if c == nil {
		return
	}
	c.activeWorkers.Inc()
}

func (c *Collector) WorkerStopped() {
	if c == nil {
		return
	}
	c.activeWorkers.Dec()
}

// WorkerFailed counts a worker that stopped with an error of the given kind.
func (c *Collector) WorkerFailed(kind string) {
	if c == nil {
		return
	}
	c.workerFailures.WithLabelValues(kind).Inc()
}

// QueueDepth implements sink.Observer.
func (c *Collector) QueueDepth(batches int) {
	if c == nil {
		return
	}
	c.queuedBatches.Set(float64(batches))
}

// SamplesWritten implements sink.Observer.
func (c *Collector) SamplesWritten(n int) {
	if c == nil {
		return
	}
	c.samplesWritten.Add(float64(n))
}

// Server serves /metrics until Shutdown.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve starts an HTTP server for the collector on addr. It returns once the
// listener is bound.
func Serve(addr string, c *Collector, logger logrus.FieldLogger) (*Server, error) {
	if c == nil {
		return nil, errors.New("metrics: no collector")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", ln.Addr().String()).Info("serving metrics")
	return s, nil
}

// Addr returns the bound address, useful when addr had port 0.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
