// Package resolver builds gate snapshots: it asks the active provider for
// every catalog gate, degrades unavailable gates to their defaults, and
// validates declared dependencies and conflicts before handing a snapshot
// back. A snapshot that violates a constraint is never returned.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/provider"
)

// DependencyError reports an enabled gate whose dependency is disabled.
type DependencyError struct {
	Gate     string
	Requires string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("feature gate %s requires %s to be enabled", e.Gate, e.Requires)
}

// ConflictError reports two conflicting gates enabled together.
type ConflictError struct {
	Gate          string
	ConflictsWith string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("feature gate %s cannot be enabled together with %s", e.Gate, e.ConflictsWith)
}

// IsValidationError reports whether err is, or wraps, a *DependencyError or
// a *ConflictError.
func IsValidationError(err error) bool {
	var (
		dep      *DependencyError
		conflict *ConflictError
	)
	return errors.As(err, &dep) || errors.As(err, &conflict)
}

// Resolver turns provider answers into snapshots. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	catalog  *gate.Catalog
	provider provider.Provider
	now      func() time.Time
	logger   log.Logger
}

// Option sets an optional parameter for the resolver.
type Option func(*Resolver)

// WithClock replaces time.Now as the source of snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger used to surface warnings.
func WithLogger(logger log.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New returns a resolver for catalog c backed by p.
func New(c *gate.Catalog, p provider.Provider, options ...Option) *Resolver {
	r := &Resolver{
		catalog:  c,
		provider: p,
		now:      time.Now,
		logger:   log.NewNopLogger(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Catalog returns the catalog the resolver resolves.
func (r *Resolver) Catalog() *gate.Catalog { return r.catalog }

// Provider returns the active provider.
func (r *Resolver) Provider() provider.Provider { return r.provider }

// Resolve resolves every gate in catalog order and returns the validated
// snapshot. Unavailable gates take their default and are recorded as
// snapshot warnings; they never stop the remaining gates from resolving.
// Any other provider error, or a violated dependency or conflict, is
// returned without a snapshot.
func (r *Resolver) Resolve(ctx context.Context, ec evaluation.Context) (*gate.Snapshot, error) {
	var (
		defs     = r.catalog.Definitions()
		entries  = make([]gate.Entry, 0, len(defs))
		warnings []error
	)
	for _, d := range defs {
		v, err := r.provider.Resolve(ctx, d.Name, d.Default, ec)
		source := gate.SourceProvider
		switch {
		case err == nil && v.Kind() != d.Kind():
			err = provider.Unavailable(r.provider.Name(), d.Name, fmt.Errorf("provider returned %s value for %s gate", v.Kind(), d.Kind()))
			fallthrough
		case provider.IsUnavailable(err):
			level.Warn(r.logger).Log("msg", "feature gate resolved to default", "gate", d.Name, "default", d.Default, "err", err)
			warnings = append(warnings, err)
			v, source = d.Default, gate.SourceDefault
		case err != nil:
			return nil, errors.Wrapf(err, "resolve feature gate %s", d.Name)
		}
		entries = append(entries, gate.Entry{Name: d.Name, Value: v, Source: source})
	}

	if err := validate(defs, entries); err != nil {
		level.Warn(r.logger).Log("msg", "rejecting feature gate configuration", "err", err)
		return nil, err
	}
	return gate.NewSnapshot(r.catalog, r.provider.Name(), r.now(), entries, warnings)
}

func validate(defs []gate.Definition, entries []gate.Entry) error {
	enabled := make(map[string]bool, len(entries))
	for _, e := range entries {
		enabled[e.Name] = e.Value.Bool()
	}
	for _, d := range defs {
		if !enabled[d.Name] {
			continue
		}
		for _, dep := range d.DependsOn {
			if !enabled[dep] {
				return &DependencyError{Gate: d.Name, Requires: dep}
			}
		}
		for _, other := range d.ConflictsWith {
			if enabled[other] {
				return &ConflictError{Gate: d.Name, ConflictsWith: other}
			}
		}
	}
	return nil
}
