// Package envvar provides feature gates from the legacy compact string held
// in the STRIMZI_FEATURE_GATES environment variable.
//
// The string is read and parsed once, on first use, and never again: gates
// served by this provider only change when the process restarts. Changing
// them therefore requires a rolling update of the operator.
package envvar

import (
	"context"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/gate/legacy"
	"github.com/strimzi/featuregates/provider"
)

// Provider answers from the parsed legacy string, falling back to the
// requested default for gates the string does not mention. The evaluation
// context is ignored.
type Provider struct {
	catalog *gate.Catalog
	envVar  string
	lookup  func(string) (string, bool)
	raw     *string
	logger  log.Logger

	once      sync.Once
	overrides legacy.Overrides
	err       error
}

// Option sets an optional parameter for the provider.
type Option func(*Provider)

// WithRaw makes the provider use raw instead of reading the environment.
func WithRaw(raw string) Option {
	return func(p *Provider) { p.raw = &raw }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(p *Provider) { p.lookup = lookup }
}

// WithEnvVar changes the variable read by the provider.
func WithEnvVar(name string) Option {
	return func(p *Provider) { p.envVar = name }
}

// WithLogger sets the logger used to report what was loaded.
func WithLogger(logger log.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New returns a provider validating gate names against c.
func New(c *gate.Catalog, options ...Option) *Provider {
	p := &Provider{
		catalog: c,
		envVar:  legacy.EnvVar,
		lookup:  os.LookupEnv,
		logger:  log.NewNopLogger(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Load reads and parses the legacy string if that has not happened yet, and
// returns the result. Call it during startup so a malformed string aborts the
// process before any reconciliation runs. Errors are sticky.
func (p *Provider) Load() (legacy.Overrides, error) {
	p.once.Do(func() {
		raw := ""
		if p.raw != nil {
			raw = *p.raw
		} else if v, ok := p.lookup(p.envVar); ok {
			raw = v
		}
		p.overrides, p.err = legacy.Parse(raw, p.catalog)
		if p.err != nil {
			p.err = errors.Wrapf(p.err, "parse %s", p.envVar)
			level.Error(p.logger).Log("msg", "invalid feature gate configuration", "env", p.envVar, "err", p.err)
			return
		}
		level.Info(p.logger).Log("msg", "loaded feature gate overrides", "env", p.envVar, "overrides", legacy.Format(p.overrides))
	})
	return p.overrides, p.err
}

// Resolve implements provider.Provider.
func (p *Provider) Resolve(_ context.Context, name string, def gate.Value, _ evaluation.Context) (gate.Value, error) {
	overrides, err := p.Load()
	if err != nil {
		return def, err
	}
	if enabled, ok := overrides.Lookup(name); ok && def.Kind() == gate.KindBool {
		return gate.BoolValue(enabled), nil
	}
	return def, nil
}

// Kind implements provider.Provider.
func (p *Provider) Kind() provider.Kind { return provider.EnvVar }

// Name implements provider.Provider.
func (p *Provider) Name() string { return string(provider.EnvVar) }
