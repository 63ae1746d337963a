// Package refresh decides when gates are re-resolved and publishes the
// results.
//
// A Controller is safe to call at the top of every reconciliation pass, from
// any number of loops at once. Concurrent refreshes for the same evaluation
// context are coalesced into one resolution, so a burst of reconciliations
// produces one round of backend calls. Providers that never change their
// answers, such as the env-var provider, are resolved once at startup and
// never again.
//
// Only resolutions made with the controller's own evaluation context are
// published to the shared state. Resolutions for any other context are kept
// per context and read back with Snapshot, so the targeting of one cluster
// never shows up in the snapshot another cluster reads.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/resolver"
	"github.com/strimzi/featuregates/state"
)

// Watcher is implemented by providers able to push change notifications.
type Watcher interface {
	Watch(ctx context.Context) <-chan struct{}
}

// Allower dictates whether a refresh may reach the provider right now.
// *rate.Limiter from golang.org/x/time/rate implements it.
type Allower interface {
	Allow() bool
}

// Controller re-resolves gates and publishes them to a shared state.
type Controller struct {
	resolver *resolver.Resolver
	state    *state.State
	static   bool

	interval time.Duration
	limiter  Allower
	ec       evaluation.Context
	now      func() time.Time
	logger   log.Logger

	refreshes   metrics.Counter
	duration    metrics.Histogram
	lastSuccess metrics.Gauge

	group  singleflight.Group
	base   *scope
	scopes sync.Map // evaluation.Context.Key() -> *scope, excluding base
}

// scope tracks the resolutions made for one evaluation context.
type scope struct {
	ec       evaluation.Context
	snapshot atomic.Pointer[gate.Snapshot] // nil for the base scope, which lives in the shared state
	lastRun  atomic.Int64                  // unix nanoseconds of the last resolution attempt, 0 if none
}

// Option sets an optional parameter for the controller.
type Option func(*Controller)

// WithInterval sets the minimum time between two resolutions triggered by
// MaybeRefresh, and the tick of Run. Zero, the default, makes every
// MaybeRefresh call resolve and disables the Run ticker.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithLimiter bounds how often resolutions may reach the provider. A refresh
// denied by the limiter keeps serving the current snapshot.
func WithLimiter(l Allower) Option {
	return func(c *Controller) { c.limiter = l }
}

// WithRateLimit is WithLimiter using a token bucket of the given rate and burst.
func WithRateLimit(every time.Duration, burst int) Option {
	return WithLimiter(rate.NewLimiter(rate.Every(every), burst))
}

// WithEvaluationContext sets the controller's own evaluation context. Only
// snapshots resolved for it are published to the shared state. The default
// is evaluation.Empty.
func WithEvaluationContext(ec evaluation.Context) Option {
	return func(c *Controller) { c.ec = ec }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithInstrumentation sets the metrics updated by the controller. refreshes
// and duration are labelled with "outcome" (success, invalid, error,
// skipped, limited, canceled); lastSuccess is set to the unix time of the last
// published snapshot.
func WithInstrumentation(refreshes metrics.Counter, duration metrics.Histogram, lastSuccess metrics.Gauge) Option {
	return func(c *Controller) {
		c.refreshes = refreshes
		c.duration = duration
		c.lastSuccess = lastSuccess
	}
}

// New returns a controller publishing to s. s must already hold the first
// snapshot resolved by r with the controller's evaluation context; the
// controller considers that resolution its first.
func New(r *resolver.Resolver, s *state.State, options ...Option) *Controller {
	c := &Controller{
		resolver:    r,
		state:       s,
		static:      r.Provider().Kind().Static(),
		now:         time.Now,
		logger:      log.NewNopLogger(),
		refreshes:   discard.NewCounter(),
		duration:    discard.NewHistogram(),
		lastSuccess: discard.NewGauge(),
	}
	for _, option := range options {
		option(c)
	}
	c.base = &scope{ec: c.ec}
	c.base.lastRun.Store(c.now().UnixNano())
	return c
}

// Snapshot returns the latest snapshot resolved for ec. Contexts that were
// never resolved, and every context of a static provider, read the shared
// snapshot. It never blocks and never returns nil.
func (c *Controller) Snapshot(ec evaluation.Context) *gate.Snapshot {
	if c.static {
		return c.state.Current()
	}
	return c.current(c.lookup(ec))
}

// Forget drops what the controller keeps for ec, for example once the
// cluster it describes is deleted. The controller's own context is never
// forgotten.
func (c *Controller) Forget(ec evaluation.Context) {
	if ec.Key() != c.base.ec.Key() {
		c.scopes.Delete(ec.Key())
	}
}

// MaybeRefresh resolves a new snapshot for ec when the configured interval
// has elapsed since the last attempt for ec. It returns the snapshot for ec
// after the call, which is never nil. A returned error means the refresh
// failed and the previous snapshot for ec is still served.
func (c *Controller) MaybeRefresh(ctx context.Context, ec evaluation.Context) (*gate.Snapshot, error) {
	if c.static {
		c.refreshes.With("outcome", "skipped").Add(1)
		return c.state.Current(), nil
	}
	sc := c.scopeFor(ec)
	if !c.due(sc) {
		c.refreshes.With("outcome", "skipped").Add(1)
		return c.current(sc), nil
	}
	return c.refresh(ctx, sc)
}

// Refresh resolves a new snapshot for ec regardless of the interval.
// For static providers it is a no-op.
func (c *Controller) Refresh(ctx context.Context, ec evaluation.Context) (*gate.Snapshot, error) {
	if c.static {
		c.refreshes.With("outcome", "skipped").Add(1)
		return c.state.Current(), nil
	}
	return c.refresh(ctx, c.scopeFor(ec))
}

func (c *Controller) lookup(ec evaluation.Context) *scope {
	if ec.Key() == c.base.ec.Key() {
		return c.base
	}
	if v, ok := c.scopes.Load(ec.Key()); ok {
		return v.(*scope)
	}
	return nil
}

func (c *Controller) scopeFor(ec evaluation.Context) *scope {
	if sc := c.lookup(ec); sc != nil {
		return sc
	}
	v, _ := c.scopes.LoadOrStore(ec.Key(), &scope{ec: ec})
	return v.(*scope)
}

// current falls back to the shared snapshot until sc has one of its own.
func (c *Controller) current(sc *scope) *gate.Snapshot {
	if sc == nil || sc == c.base {
		return c.state.Current()
	}
	if snap := sc.snapshot.Load(); snap != nil {
		return snap
	}
	return c.state.Current()
}

func (c *Controller) due(sc *scope) bool {
	last := sc.lastRun.Load()
	if c.interval <= 0 || last == 0 {
		return true
	}
	return c.now().Sub(time.Unix(0, last)) >= c.interval
}

func (c *Controller) refresh(ctx context.Context, sc *scope) (*gate.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		c.refreshes.With("outcome", "canceled").Add(1)
		return c.current(sc), err
	}

	// The resolution outlives the caller that started it; each waiter
	// honours only its own ctx.
	flight := context.WithoutCancel(ctx)
	results := c.group.DoChan(sc.ec.Key(), func() (interface{}, error) {
		return c.resolve(flight, sc)
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return c.current(sc), res.Err
		}
		return res.Val.(*gate.Snapshot), nil
	case <-ctx.Done():
		return c.current(sc), ctx.Err()
	}
}

func (c *Controller) resolve(ctx context.Context, sc *scope) (*gate.Snapshot, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.refreshes.With("outcome", "limited").Add(1)
		return c.current(sc), nil
	}
	begin := c.now()
	sc.lastRun.Store(begin.UnixNano())

	snap, err := c.resolver.Resolve(ctx, sc.ec)
	outcome := "success"
	switch {
	case resolver.IsValidationError(err):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	c.refreshes.With("outcome", outcome).Add(1)
	c.duration.With("outcome", outcome).Observe(c.now().Sub(begin).Seconds())
	if err != nil {
		level.Warn(c.logger).Log("msg", "feature gate refresh failed, keeping current snapshot", "context", sc.ec, "err", err)
		return nil, err
	}

	if sc == c.base {
		if err := c.state.Publish(snap); err != nil {
			return nil, err
		}
		level.Debug(c.logger).Log("msg", "published feature gate snapshot", "provider", snap.Provider(), "generation", c.state.Generation(), "warnings", len(snap.Warnings()))
	} else {
		sc.snapshot.Store(snap)
		level.Debug(c.logger).Log("msg", "resolved feature gate snapshot", "context", sc.ec, "provider", snap.Provider(), "warnings", len(snap.Warnings()))
	}
	c.lastSuccess.Set(float64(snap.ResolvedAt().Unix()))
	return snap, nil
}

// Run refreshes the controller's own context, and every other context
// resolved so far, on each interval tick and on each change pushed by the
// provider, until ctx is done. For static providers it only waits for ctx.
// Refresh errors are logged, never returned; Run returns ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	if c.static {
		<-ctx.Done()
		return ctx.Err()
	}

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	var changes <-chan struct{}
	if w, ok := c.resolver.Provider().(Watcher); ok {
		changes = w.Watch(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			c.refreshAll(ctx)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			level.Debug(c.logger).Log("msg", "feature gate change notification")
			c.refreshAll(ctx)
		}
	}
}

func (c *Controller) refreshAll(ctx context.Context) {
	c.refresh(ctx, c.base)
	c.scopes.Range(func(_, v interface{}) bool {
		if ctx.Err() != nil {
			return false
		}
		c.refresh(ctx, v.(*scope))
		return true
	})
}
