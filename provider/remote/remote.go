package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/provider"
)

// DefaultTimeout bounds a single backend evaluation.
const DefaultTimeout = 2 * time.Second

// Backend evaluates one gate for an evaluation context. It returns def, or
// any value of the same kind, on success.
type Backend interface {
	Evaluate(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error)
}

// BackendFunc is an adapter to use a stand-alone function as a Backend.
type BackendFunc func(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error)

// Evaluate implements Backend.
func (f BackendFunc) Evaluate(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	return f(ctx, name, def, ec)
}

// Notifier is implemented by backends that can push change notifications.
// Watch returns a channel that receives a value whenever gate values may
// have changed; it is closed when ctx is done.
type Notifier interface {
	Watch(ctx context.Context) <-chan struct{}
}

// ErrKindMismatch is the cause reported when a backend answers with a value
// outside the gate's variant domain.
var ErrKindMismatch = errors.New("backend value has wrong kind")

// Provider adapts a Backend to provider.Provider.
type Provider struct {
	name     string
	backend  Backend
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker
	settings *gobreaker.Settings
	logger   log.Logger
	calls    metrics.Counter
	duration metrics.Histogram
}

// Option sets an optional parameter for the provider.
type Option func(*Provider)

// WithName sets the provider identity recorded in snapshots. The default is
// "remote".
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithTimeout bounds each backend evaluation. Non-positive values select
// DefaultTimeout; the timeout cannot be disabled.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBreakerSettings configures the circuit breaker guarding the backend.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(p *Provider) { p.settings = &st }
}

// WithoutBreaker disables the circuit breaker.
func WithoutBreaker() Option {
	return func(p *Provider) { p.settings = nil; p.breaker = nil }
}

// WithLogger sets the logger used to report degraded evaluations.
func WithLogger(logger log.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithInstrumentation sets the metrics updated on every evaluation. Both are
// labelled with "outcome" (success, error, timeout, open, mismatch,
// canceled).
func WithInstrumentation(calls metrics.Counter, duration metrics.Histogram) Option {
	return func(p *Provider) {
		p.calls = calls
		p.duration = duration
	}
}

// New returns a provider backed by b.
func New(b Backend, options ...Option) *Provider {
	p := &Provider{
		name:     string(provider.Remote),
		backend:  b,
		timeout:  DefaultTimeout,
		settings: &gobreaker.Settings{},
		logger:   log.NewNopLogger(),
		calls:    discard.NewCounter(),
		duration: discard.NewHistogram(),
	}
	for _, option := range options {
		option(p)
	}
	if p.settings != nil {
		st := *p.settings
		if st.Name == "" {
			st.Name = p.name
		}
		p.breaker = gobreaker.NewCircuitBreaker(st)
	}
	return p
}

// Resolve implements provider.Provider. When the backend fails it returns
// def alongside an *provider.UnavailableError. When ctx itself is done it
// returns def alongside ctx.Err(), so the caller abandons the pass instead of
// treating its own cancellation as an outage.
func (p *Provider) Resolve(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	begin := time.Now()
	if err := ctx.Err(); err != nil {
		p.calls.With("outcome", "canceled").Add(1)
		return def, err
	}
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	v, err := p.evaluate(ctx, tctx, name, def, ec)
	if err == nil && v.Kind() != def.Kind() {
		err = errors.Wrapf(ErrKindMismatch, "got %s, want %s", v.Kind(), def.Kind())
	}

	outcome := outcomeOf(err)
	if err != nil && ctx.Err() != nil {
		outcome = "canceled"
	}
	p.calls.With("outcome", outcome).Add(1)
	p.duration.With("outcome", outcome).Observe(time.Since(begin).Seconds())

	switch {
	case err == nil:
		return v, nil
	case ctx.Err() != nil:
		return def, ctx.Err()
	default:
		level.Warn(p.logger).Log("msg", "feature gate backend unavailable, using default", "gate", name, "default", def, "outcome", outcome, "err", err)
		return def, provider.Unavailable(p.name, name, err)
	}
}

// callerGone carries the result of a call abandoned because the caller's
// context ended. It is handed to the breaker as a non-failure.
type callerGone struct{ err error }

func (p *Provider) evaluate(parent, ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	if p.breaker == nil {
		return p.call(ctx, name, def, ec)
	}
	res, err := p.breaker.Execute(func() (interface{}, error) {
		v, err := p.call(ctx, name, def, ec)
		if err != nil && parent.Err() != nil {
			return callerGone{err}, nil
		}
		return v, err
	})
	if err != nil {
		return gate.Value{}, err
	}
	if gone, ok := res.(callerGone); ok {
		return gate.Value{}, gone.err
	}
	return res.(gate.Value), nil
}

// call runs the backend in its own goroutine so that a backend ignoring ctx
// still cannot hold the caller past the timeout.
func (p *Provider) call(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	type result struct {
		v   gate.Value
		err error
	}
	c := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c <- result{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		v, err := p.backend.Evaluate(ctx, name, def, ec)
		c <- result{v, err}
	}()
	select {
	case r := <-c:
		return r.v, r.err
	case <-ctx.Done():
		return gate.Value{}, ctx.Err()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "open"
	case errors.Is(err, ErrKindMismatch):
		return "mismatch"
	default:
		return "error"
	}
}

// Watch returns the backend's change notifications, or nil when the backend
// cannot push changes. A nil channel never delivers, so callers can select
// on the result unconditionally.
func (p *Provider) Watch(ctx context.Context) <-chan struct{} {
	n, ok := p.backend.(Notifier)
	if !ok {
		return nil
	}
	return n.Watch(ctx)
}

// Kind implements provider.Provider.
func (p *Provider) Kind() provider.Kind { return provider.Remote }

// Name implements provider.Provider.
func (p *Provider) Name() string { return p.name }
