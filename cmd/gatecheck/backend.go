package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-kit/log"
	consul "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	clientv3 "go.etcd.io/etcd/client/v3"
	ld "gopkg.in/launchdarkly/go-client.v3"

	"github.com/strimzi/featuregates/provider/remote"
	remoteconsul "github.com/strimzi/featuregates/provider/remote/consul"
	remoteetcd "github.com/strimzi/featuregates/provider/remote/etcd"
	"github.com/strimzi/featuregates/provider/remote/inmem"
	remoteld "github.com/strimzi/featuregates/provider/remote/launchdarkly"
)

const (
	backendNone         = ""
	backendRules        = "rules"
	backendConsul       = "consul"
	backendEtcd         = "etcd"
	backendLaunchDarkly = "launchdarkly"
)

type backendOptions struct {
	kind          string
	rulesFile     string
	prefix        string
	consulAddr    string
	etcdEndpoints []string
	ldSDKKey      string
	connectWait   time.Duration
}

func (o *backendOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.kind, "backend", "", "remote backend: rules, consul, etcd or launchdarkly (default: env-var provider)")
	fs.StringVar(&o.rulesFile, "rules", "", "YAML targeting rules for the rules backend; implies --backend=rules")
	fs.StringVar(&o.prefix, "prefix", "strimzi/feature-gates", "key prefix for the consul and etcd backends")
	fs.StringVar(&o.consulAddr, "consul-addr", "", "Consul agent address (default $CONSUL_HTTP_ADDR)")
	fs.StringSliceVar(&o.etcdEndpoints, "etcd-endpoints", []string{"127.0.0.1:2379"}, "etcd endpoints")
	fs.StringVar(&o.ldSDKKey, "launchdarkly-sdk-key", "", "LaunchDarkly SDK key (default $LAUNCHDARKLY_SDK_KEY)")
	fs.DurationVar(&o.connectWait, "connect-timeout", 5*time.Second, "how long to wait for the backend to connect")
}

// build returns the selected backend, or nil when the env-var provider should
// be used. The returned func releases the backend's resources.
func (o *backendOptions) build(ctx context.Context, logger log.Logger) (remote.Backend, func(), error) {
	nop := func() {}
	kind := o.kind
	if kind == backendNone && o.rulesFile != "" {
		kind = backendRules
	}
	logger = log.With(logger, "backend", kind)

	switch kind {
	case backendNone:
		return nil, nop, nil

	case backendRules:
		if o.rulesFile == "" {
			return nil, nop, errors.New("--rules is required by the rules backend")
		}
		f, err := os.Open(o.rulesFile)
		if err != nil {
			return nil, nop, err
		}
		defer f.Close()
		b, err := inmem.LoadYAML(f)
		if err != nil {
			return nil, nop, errors.Wrap(err, o.rulesFile)
		}
		return b, nop, nil

	case backendConsul:
		cfg := consul.DefaultConfig()
		if o.consulAddr != "" {
			cfg.Address = o.consulAddr
		}
		client, err := consul.NewClient(cfg)
		if err != nil {
			return nil, nop, errors.Wrap(err, "consul client")
		}
		retry := func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return backoff.WithContext(b, ctx)
		}
		return remoteconsul.New(client.KV(), o.prefix,
			remoteconsul.WithLogger(logger),
			remoteconsul.WithRetry(retry),
		), nop, nil

	case backendEtcd:
		client, err := clientv3.New(clientv3.Config{
			Context:     ctx,
			Endpoints:   o.etcdEndpoints,
			DialTimeout: o.connectWait,
		})
		if err != nil {
			return nil, nop, errors.Wrap(err, "etcd client")
		}
		return remoteetcd.New(client, o.prefix, logger), func() { client.Close() }, nil

	case backendLaunchDarkly:
		key := o.ldSDKKey
		if key == "" {
			key = os.Getenv("LAUNCHDARKLY_SDK_KEY")
		}
		if strings.TrimSpace(key) == "" {
			return nil, nop, errors.New("a LaunchDarkly SDK key is required")
		}
		client, err := ld.MakeClient(key, o.connectWait)
		if err != nil {
			return nil, nop, errors.Wrap(err, "launchdarkly client")
		}
		return remoteld.New(client), func() { client.Close() }, nil

	default:
		return nil, nop, errors.Errorf("unknown backend %q", o.kind)
	}
}
