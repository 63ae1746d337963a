package featuregates

import (
	"context"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/flags"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/provider"
	"github.com/strimzi/featuregates/provider/envvar"
	"github.com/strimzi/featuregates/provider/remote"
	"github.com/strimzi/featuregates/refresh"
	"github.com/strimzi/featuregates/resolver"
	"github.com/strimzi/featuregates/state"
)

// ErrNoBackend is returned when the remote provider is selected without a
// backend.
var ErrNoBackend = errors.New("remote feature gate provider selected without a backend")

// Gates is the handle reconciliation loops use to read and refresh gates.
// It is safe for concurrent use.
type Gates struct {
	catalog    *gate.Catalog
	provider   provider.Provider
	state      *state.State
	controller *refresh.Controller
}

type options struct {
	catalog        *gate.Catalog
	lookup         func(string) (string, bool)
	logger         log.Logger
	backend        remote.Backend
	ec             evaluation.Context
	envOptions     []envvar.Option
	remoteOptions  []remote.Option
	refreshOptions []refresh.Option
}

// Option sets an optional parameter for New.
type Option func(*options)

// WithCatalog replaces the built-in gate catalog.
func WithCatalog(c *gate.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithEnv replaces os.LookupEnv, for both ConfigFromEnv and the env-var
// provider.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(o *options) { o.lookup = lookup }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBackend sets the flagging backend used when the remote provider is
// selected. It is ignored for the env-var provider.
func WithBackend(b remote.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithEvaluationContext sets the context of the startup resolution and of
// the refreshes Run triggers.
func WithEvaluationContext(ec evaluation.Context) Option {
	return func(o *options) { o.ec = ec }
}

// WithEnvVarOptions passes options through to the env-var provider.
func WithEnvVarOptions(opts ...envvar.Option) Option {
	return func(o *options) { o.envOptions = append(o.envOptions, opts...) }
}

// WithRemoteOptions passes options through to the remote provider.
func WithRemoteOptions(opts ...remote.Option) Option {
	return func(o *options) { o.remoteOptions = append(o.remoteOptions, opts...) }
}

// WithRefreshOptions passes options through to the refresh controller.
func WithRefreshOptions(opts ...refresh.Option) Option {
	return func(o *options) { o.refreshOptions = append(o.refreshOptions, opts...) }
}

// NewFromEnv reads the Config from the environment and calls New.
func NewFromEnv(ctx context.Context, opts ...Option) (*Gates, error) {
	o := collect(opts)
	cfg, err := ConfigFromEnv(o.lookup)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

func collect(opts []Option) options {
	o := options{
		catalog: gate.Default(),
		lookup:  os.LookupEnv,
		logger:  log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the engine and performs the first resolution. Any error is
// fatal: a malformed legacy string, an unknown provider, a missing backend,
// or a first resolution that fails validation. After New returns, reads
// never fail.
func New(ctx context.Context, cfg Config, opts ...Option) (*Gates, error) {
	o := collect(opts)
	logger := log.With(o.logger, "component", "featuregates")

	var p provider.Provider
	switch cfg.Provider {
	case provider.EnvVar, "":
		ep := envvar.New(o.catalog, append([]envvar.Option{
			envvar.WithLookup(o.lookup),
			envvar.WithLogger(logger),
		}, o.envOptions...)...)
		if _, err := ep.Load(); err != nil {
			return nil, err
		}
		p = ep
	case provider.Remote:
		if o.backend == nil {
			return nil, ErrNoBackend
		}
		p = remote.New(o.backend, append([]remote.Option{
			remote.WithTimeout(cfg.RemoteTimeout),
			remote.WithLogger(logger),
		}, o.remoteOptions...)...)
	default:
		return nil, errors.Wrapf(provider.ErrUnknownKind, "%q", cfg.Provider)
	}

	r := resolver.New(o.catalog, p, resolver.WithLogger(logger))
	first, err := r.Resolve(ctx, o.ec)
	if err != nil {
		return nil, errors.Wrap(err, "initial feature gate resolution")
	}
	s, err := state.New(first)
	if err != nil {
		return nil, err
	}
	c := refresh.New(r, s, append([]refresh.Option{
		refresh.WithInterval(cfg.RefreshInterval),
		refresh.WithEvaluationContext(o.ec),
		refresh.WithLogger(logger),
	}, o.refreshOptions...)...)

	level.Info(logger).Log("msg", "feature gates resolved", "provider", p.Name(), "gates", describe(first))
	return &Gates{
		catalog:    o.catalog,
		provider:   p,
		state:      s,
		controller: c,
	}, nil
}

func describe(s *gate.Snapshot) string {
	var out []byte
	for i, e := range s.Entries() {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, e.Name...)
		out = append(out, '=')
		out = append(out, e.Value.String()...)
	}
	return string(out)
}

// CurrentGates returns the shared snapshot, resolved for the evaluation
// context given with WithEvaluationContext.
func (g *Gates) CurrentGates() *gate.Snapshot { return g.state.Current() }

// IsEnabled reports whether the named boolean gate is enabled in the shared
// snapshot. Unknown gates are disabled. Use IsEnabledFor when the answer may
// depend on the cluster being reconciled.
func (g *Gates) IsEnabled(name string) bool { return g.state.Current().Enabled(name) }

// GatesFor returns the latest snapshot resolved for ec by Refresh or
// MaybeRefresh, or the shared snapshot if ec was never resolved.
func (g *Gates) GatesFor(ec evaluation.Context) *gate.Snapshot { return g.controller.Snapshot(ec) }

// IsEnabledFor reports whether the named boolean gate is enabled for ec.
func (g *Gates) IsEnabledFor(ec evaluation.Context, name string) bool {
	return g.controller.Snapshot(ec).Enabled(name)
}

// MaybeRefresh re-resolves gates for ec if the refresh interval has elapsed
// since the last attempt for ec. It returns the snapshot for ec after the
// call; an error means the refresh was rejected and the previous snapshot is
// still served. Only refreshes of the engine's own evaluation context change
// CurrentGates.
func (g *Gates) MaybeRefresh(ctx context.Context, ec evaluation.Context) (*gate.Snapshot, error) {
	return g.controller.MaybeRefresh(ctx, ec)
}

// Refresh re-resolves gates for ec now. It is a no-op for the env-var
// provider.
func (g *Gates) Refresh(ctx context.Context, ec evaluation.Context) (*gate.Snapshot, error) {
	return g.controller.Refresh(ctx, ec)
}

// Forget drops the snapshot kept for ec, once the cluster it describes is
// gone.
func (g *Gates) Forget(ec evaluation.Context) { g.controller.Forget(ec) }

// Run drives periodic and push-triggered refreshes of every known
// evaluation context until ctx is done.
func (g *Gates) Run(ctx context.Context) error { return g.controller.Run(ctx) }

// State returns the shared state, for components that want to register
// snapshot listeners.
func (g *Gates) State() *state.State { return g.state }

// Catalog returns the gate catalog.
func (g *Gates) Catalog() *gate.Catalog { return g.catalog }

// Provider returns the active provider.
func (g *Gates) Provider() provider.Provider { return g.provider }

// Bool returns a typed handle on the named boolean gate. The handle reads
// the snapshot of the evaluation context carried by its context.Context.
func (g *Gates) Bool(name string) flags.Booler { return flags.NewBooler(g.controller, name) }

// Int returns a typed handle on the named integer gate.
func (g *Gates) Int(name string) flags.Inter { return flags.NewInter(g.controller, name) }

// Float returns a typed handle on the named float gate.
func (g *Gates) Float(name string) flags.Floater { return flags.NewFloater(g.controller, name) }

// String returns a typed handle on the named string gate.
func (g *Gates) String(name string) flags.Stringer { return flags.NewStringer(g.controller, name) }
