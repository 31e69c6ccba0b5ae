package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout   = 2 * time.Second
	defaultQueueSize = 256
)

// Status is reported by the ops endpoint.
type Status struct {
	Enabled bool   `json:"enabled"`
	Project string `json:"project"`
}

// Sink is the fire-and-forget front of an Exporter. StartTrace runs inline
// under a short timeout so the caller gets an id; every other call is queued
// to one background worker, preserving order. Export failures are logged and
// never returned. A nil *Sink is valid and does nothing.
type Sink struct {
	exporter Exporter
	logger   *zap.Logger
	project  string
	timeout  time.Duration
	closers  []func(context.Context) error

	mu     sync.RWMutex
	closed bool
	queue  chan func(context.Context) error
	done   chan struct{}
}

type Option func(*Sink)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithProject(project string) Option {
	return func(s *Sink) { s.project = project }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithQueueSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.queue = make(chan func(context.Context) error, n)
		}
	}
}

// WithCloser registers a shutdown hook run after the queue drains.
func WithCloser(fn func(context.Context) error) Option {
	return func(s *Sink) {
		if fn != nil {
			s.closers = append(s.closers, fn)
		}
	}
}

func NewSink(exporter Exporter, opts ...Option) *Sink {
	if exporter == nil {
		exporter = NopExporter{}
	}
	s := &Sink{
		exporter: exporter,
		logger:   zap.NewNop(),
		timeout:  defaultTimeout,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("tracing")
	if !exporter.Enabled() {
		s.queue = nil
		close(s.done)
		return s
	}
	if s.queue == nil {
		s.queue = make(chan func(context.Context) error, defaultQueueSize)
	}
	go s.run()
	return s
}

func (s *Sink) Enabled() bool {
	return s != nil && s.exporter.Enabled()
}

func (s *Sink) Status() Status {
	if s == nil {
		return Status{}
	}
	return Status{Enabled: s.Enabled(), Project: s.project}
}

// StartTrace opens a trace and returns its id, or "" when disabled or failing.
func (s *Sink) StartTrace(ctx context.Context, name string, meta map[string]any) string {
	if !s.Enabled() {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	id, err := s.exporter.StartTrace(ctx, name, meta)
	if err != nil {
		s.logger.Warn("trace.start_failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	return id
}

func (s *Sink) Event(traceID, name string, payload map[string]any) {
	if traceID == "" {
		return
	}
	s.enqueue("event", func(ctx context.Context) error {
		return s.exporter.Event(ctx, traceID, name, payload)
	})
}

func (s *Sink) EndTrace(traceID string, result map[string]any) {
	if traceID == "" {
		return
	}
	s.enqueue("end", func(ctx context.Context) error {
		return s.exporter.EndTrace(ctx, traceID, result)
	})
}

func (s *Sink) LogEval(traceID, name string, value float64, reason string) {
	if traceID == "" {
		return
	}
	s.enqueue("eval", func(ctx context.Context) error {
		return s.exporter.LogEval(ctx, traceID, name, value, reason)
	})
}

func (s *Sink) enqueue(op string, fn func(context.Context) error) {
	if !s.Enabled() {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Debug("trace.dropped_after_close", zap.String("op", op))
		return
	}
	select {
	case s.queue <- fn:
	default:
		s.logger.Warn("trace.queue_full", zap.String("op", op))
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for fn := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := fn(ctx); err != nil {
			s.logger.Warn("trace.export_failed", zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting calls, drains the queue and runs registered closers.
func (s *Sink) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		if s.queue != nil {
			close(s.queue)
		}
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, fn := range s.closers {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
