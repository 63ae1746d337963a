// Package launchdarkly provides a remote feature gate backend based on the
// LaunchDarkly service.
package launchdarkly

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	ld "gopkg.in/launchdarkly/go-client.v3"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
)

// Client is the subset of *ld.LDClient used by the backend.
type Client interface {
	BoolVariation(key string, user ld.User, defaultVal bool) (bool, error)
	IntVariation(key string, user ld.User, defaultVal int) (int, error)
	Float64Variation(key string, user ld.User, defaultVal float64) (float64, error)
	StringVariation(key string, user ld.User, defaultVal string) (string, error)
}

// Backend evaluates gates as LaunchDarkly flags of the same key.
type Backend struct {
	client Client
}

// New returns a backend using a fully set up client.
func New(client Client) *Backend {
	return &Backend{client: client}
}

// Evaluate implements remote.Backend. The client API is synchronous, so ctx
// is only checked before the call; the remote provider enforces the timeout.
func (b *Backend) Evaluate(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	if err := ctx.Err(); err != nil {
		return gate.Value{}, err
	}
	user := User(ec)
	switch def.Kind() {
	case gate.KindBool:
		v, err := b.client.BoolVariation(name, user, def.Bool())
		return gate.BoolValue(v), err
	case gate.KindInt:
		v, err := b.client.IntVariation(name, user, int(def.Int()))
		return gate.IntValue(int64(v)), err
	case gate.KindFloat:
		v, err := b.client.Float64Variation(name, user, def.Float())
		return gate.FloatValue(v), err
	case gate.KindString:
		v, err := b.client.StringVariation(name, user, def.Text())
		return gate.StringValue(v), err
	default:
		return gate.Value{}, fmt.Errorf("unsupported gate kind %s", def.Kind())
	}
}

// User maps an evaluation context to the LaunchDarkly user the flag is
// evaluated for. Contexts naming a cluster become a stable user keyed by
// namespace/clusterName; anything else becomes an anonymous user with a
// random (16-byte) key. Every attribute is also sent as a custom attribute,
// so targeting rules can match on it directly.
func User(ec evaluation.Context) ld.User {
	var user ld.User
	if name := ec.ClusterName(); name != "" {
		user = ld.NewUser(ec.Namespace() + "/" + name)
	} else {
		key := make([]byte, 16)
		io.ReadFull(rand.Reader, key)
		user = ld.NewAnonymousUser(fmt.Sprintf("%x", key))
	}
	if !ec.IsEmpty() {
		custom := make(map[string]interface{}, ec.Len())
		for _, a := range ec.Attributes() {
			custom[a.Key] = a.Value
		}
		user.Custom = &custom
	}
	return user
}
