package featuregates

import (
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/provider"
)

// Environment variables read by ConfigFromEnv.
const (
	RefreshIntervalEnvVar = "STRIMZI_FEATURE_GATES_REFRESH_INTERVAL"
	RemoteTimeoutEnvVar   = "STRIMZI_FEATURE_GATES_REMOTE_TIMEOUT"
)

// Config selects and tunes the engine. It is read once at startup.
type Config struct {
	// Provider is the active provider kind.
	Provider provider.Kind

	// RefreshInterval is the minimum time between two resolutions started by
	// MaybeRefresh, and the period of Run. Zero re-resolves on every
	// MaybeRefresh call, which is the expected mode for the remote provider.
	RefreshInterval time.Duration

	// RemoteTimeout bounds each call to the remote backend. Zero selects the
	// remote package default.
	RemoteTimeout time.Duration
}

// ConfigFromEnv builds a Config from the environment, using lookup in place
// of os.LookupEnv when non-nil. An unrecognized provider selection is an
// error the caller must treat as fatal.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var (
		cfg Config
		err error
	)
	selection, _ := lookup(provider.SelectionEnvVar)
	if cfg.Provider, err = provider.ParseKind(selection); err != nil {
		return Config{}, errors.Wrap(err, provider.SelectionEnvVar)
	}
	if cfg.RefreshInterval, err = duration(lookup, RefreshIntervalEnvVar); err != nil {
		return Config{}, err
	}
	if cfg.RemoteTimeout, err = duration(lookup, RemoteTimeoutEnvVar); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func duration(lookup func(string) (string, bool), name string) (time.Duration, error) {
	raw, ok := lookup(name)
	if !ok || raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrap(err, name)
	}
	if d < 0 {
		return 0, errors.Errorf("%s: negative duration %s", name, raw)
	}
	return d, nil
}
