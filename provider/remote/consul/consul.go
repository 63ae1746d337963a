// Package consul provides a remote feature gate backend reading gate values
// from the Consul KV store.
//
// Values are looked up with remote.ScopedKeys and decoded according to the
// gate's kind. A gate without any key is served its default.
package consul

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	consul "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/provider/remote"
)

// DefaultWaitTime is the blocking query duration used by Watch.
const DefaultWaitTime = 5 * time.Minute

// KV is the subset of *consul.KV used by the backend.
type KV interface {
	Get(key string, q *consul.QueryOptions) (*consul.KVPair, *consul.QueryMeta, error)
	List(prefix string, q *consul.QueryOptions) (consul.KVPairs, *consul.QueryMeta, error)
}

// Backend reads gates below a KV prefix.
type Backend struct {
	kv       KV
	prefix   string
	wait     time.Duration
	logger   log.Logger
	newRetry func() backoff.BackOff
}

// Option sets an optional parameter for the backend.
type Option func(*Backend)

// WithLogger sets the logger used by Watch.
func WithLogger(logger log.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// WithWaitTime sets the blocking query duration used by Watch.
func WithWaitTime(d time.Duration) Option {
	return func(b *Backend) { b.wait = d }
}

// WithRetry sets the backoff policy applied when a watch query fails.
func WithRetry(newRetry func() backoff.BackOff) Option {
	return func(b *Backend) { b.newRetry = newRetry }
}

// New returns a backend reading keys below prefix. Pass client.KV() of a
// fully set up Consul client.
func New(kv KV, prefix string, options ...Option) *Backend {
	b := &Backend{
		kv:     kv,
		prefix: prefix,
		wait:   DefaultWaitTime,
		logger: log.NewNopLogger(),
		newRetry: func() backoff.BackOff {
			eb := backoff.NewExponentialBackOff()
			eb.MaxElapsedTime = 0
			return eb
		},
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Evaluate implements remote.Backend.
func (b *Backend) Evaluate(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	q := (&consul.QueryOptions{}).WithContext(ctx)
	for _, key := range remote.ScopedKeys(b.prefix, name, ec) {
		pair, _, err := b.kv.Get(key, q)
		if err != nil {
			return gate.Value{}, errors.Wrapf(err, "consul get %s", key)
		}
		if pair == nil {
			continue
		}
		v, err := gate.ParseValue(def.Kind(), string(pair.Value))
		if err != nil {
			return gate.Value{}, errors.Wrapf(err, "consul key %s", key)
		}
		return v, nil
	}
	return def, nil
}

// Watch implements remote.Notifier with blocking queries on the prefix.
func (b *Backend) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go b.loop(ctx, out)
	return out
}

func (b *Backend) loop(ctx context.Context, out chan<- struct{}) {
	defer close(out)
	var (
		index uint64
		retry = b.newRetry()
	)
	for {
		q := (&consul.QueryOptions{WaitIndex: index, WaitTime: b.wait}).WithContext(ctx)
		_, meta, err := b.kv.List(b.prefix, q)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d := retry.NextBackOff()
			level.Warn(b.logger).Log("msg", "consul watch failed", "prefix", b.prefix, "retry_in", d, "err", err)
			if d == backoff.Stop {
				return
			}
			select {
			case <-time.After(d):
				continue
			case <-ctx.Done():
				return
			}
		}
		retry.Reset()

		switch {
		case meta.LastIndex < index:
			index = 0 // index went backwards, start over
		case meta.LastIndex > index:
			if index != 0 {
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
			index = meta.LastIndex
		}
	}
}
