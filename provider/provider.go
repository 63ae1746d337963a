package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
)

// Provider resolves a single gate. Implementations must be safe for
// concurrent use.
//
// When the provider cannot produce an answer but degrading is acceptable,
// Resolve returns def together with an *UnavailableError. Any other error
// means the provider is misconfigured and resolution must not proceed.
type Provider interface {
	Resolve(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error)
	Kind() Kind
	Name() string
}

// Kind selects a provider variant.
type Kind string

// The provider kinds. EnvVar is the default.
const (
	EnvVar Kind = "env-var"
	Remote Kind = "remote"
)

// SelectionEnvVar is the environment variable naming the active provider kind.
const SelectionEnvVar = "STRIMZI_FEATURE_GATES_PROVIDER"

// ErrUnknownKind is returned by ParseKind for unrecognized selection values.
var ErrUnknownKind = errors.New("unknown feature gate provider")

// ParseKind maps a selection value to a Kind. The empty string selects EnvVar.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.TrimSpace(s)) {
	case "", EnvVar:
		return EnvVar, nil
	case Remote:
		return Remote, nil
	default:
		return "", errors.Wrapf(ErrUnknownKind, "%q (want %q or %q)", s, EnvVar, Remote)
	}
}

// Static reports whether providers of kind k answer identically for the
// whole process lifetime.
func (k Kind) Static() bool { return k == EnvVar }

// UnavailableError reports that a provider could not answer for a gate and
// the default was used instead.
type UnavailableError struct {
	Provider string
	Gate     string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable for feature gate %s: %v", e.Provider, e.Gate, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable returns an *UnavailableError for the named gate.
func Unavailable(provider, gate string, err error) error {
	return &UnavailableError{Provider: provider, Gate: gate, Err: err}
}

// IsUnavailable reports whether err is, or wraps, an *UnavailableError.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}
