// Package etcd provides a remote feature gate backend reading gate values
// from etcd v3, and pushing change notifications from a prefix watch.
package etcd

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/provider/remote"
)

// Client is the subset of *clientv3.Client used by the backend.
type Client interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan
}

// Backend reads gates below a key prefix, using remote.ScopedKeys.
type Backend struct {
	client Client
	prefix string
	logger log.Logger
}

// New returns a backend reading keys below prefix.
func New(client Client, prefix string, logger log.Logger) *Backend {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Backend{client: client, prefix: prefix, logger: logger}
}

// Evaluate implements remote.Backend.
func (b *Backend) Evaluate(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	for _, key := range remote.ScopedKeys(b.prefix, name, ec) {
		resp, err := b.client.Get(ctx, key)
		if err != nil {
			return gate.Value{}, errors.Wrapf(err, "etcd get %s", key)
		}
		if len(resp.Kvs) == 0 {
			continue
		}
		v, err := gate.ParseValue(def.Kind(), string(resp.Kvs[0].Value))
		if err != nil {
			return gate.Value{}, errors.Wrapf(err, "etcd key %s", key)
		}
		return v, nil
	}
	return def, nil
}

// Watch implements remote.Notifier. The returned channel is closed when ctx
// is done or the etcd watch ends.
func (b *Backend) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	wc := b.client.Watch(ctx, b.prefix, clientv3.WithPrefix())
	go func() {
		defer close(out)
		for resp := range wc {
			if err := resp.Err(); err != nil {
				level.Warn(b.logger).Log("msg", "etcd watch error", "prefix", b.prefix, "err", err)
				continue
			}
			if len(resp.Events) == 0 {
				continue
			}
			select {
			case out <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
