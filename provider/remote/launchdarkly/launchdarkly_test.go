package launchdarkly

import (
	"context"
	"io/ioutil"
	stdlog "log"
	"testing"
	"time"

	ld "gopkg.in/launchdarkly/go-client.v3"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
)

func TestUserForCluster(t *testing.T) {
	user := User(evaluation.ForCluster("namespace-a", "kafka-cluster-a"))
	if want, have := "namespace-a/kafka-cluster-a", *user.Key; want != have {
		t.Errorf("want key %q, have %q", want, have)
	}
	if user.Custom == nil {
		t.Fatal("want custom attributes")
	}
	if want, have := "kafka-cluster-a", (*user.Custom)[evaluation.ClusterNameKey]; want != have {
		t.Errorf("want %q, have %v", want, have)
	}
}

func TestUserAnonymous(t *testing.T) {
	user1 := User(evaluation.Empty)
	if user1.Key == nil || *user1.Key == "" {
		t.Errorf("expected key: %v\n", user1)
	}
	if !*user1.Anonymous {
		t.Errorf("expected anonymous: %v\n", user1)
	}
	user2 := User(evaluation.Empty)
	if *user1.Key == *user2.Key {
		t.Errorf("expected unique random keys: %q vs %q\n", *user1.Key, *user2.Key)
	}
}

func buildClient(t *testing.T) *ld.LDClient {
	t.Helper()

	cfg := ld.DefaultConfig
	cfg.Offline = true
	cfg.Logger = stdlog.New(ioutil.Discard, "", 0)
	client, _ := ld.MakeCustomClient("", cfg, 0)
	return client
}

func TestOfflineClientServesDefaults(t *testing.T) {
	b := New(buildClient(t))
	ctx := context.Background()
	for _, def := range []gate.Value{
		gate.BoolValue(time.Now().Unix()%2 == 0),
		gate.IntValue(time.Now().Unix() % 229),
		gate.FloatValue(float64(time.Now().Unix()%229) / 7),
		gate.StringValue("value"),
	} {
		v, _ := b.Evaluate(ctx, "test-"+def.Kind().String(), def, evaluation.Empty)
		if !def.Equal(v) {
			t.Errorf("want %v, have %v", def, v)
		}
	}
}

type fakeClient struct {
	Client
	user ld.User
}

func (c *fakeClient) BoolVariation(key string, user ld.User, defaultVal bool) (bool, error) {
	c.user = user
	return key == "feature-gate-x" && user.Key != nil && *user.Key == "namespace-a/kafka-cluster-a", nil
}

func TestEvaluateForwardsUser(t *testing.T) {
	c := &fakeClient{}
	b := New(c)
	v, err := b.Evaluate(context.Background(), "feature-gate-x", gate.BoolValue(false), evaluation.ForCluster("namespace-a", "kafka-cluster-a"))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Bool() {
		t.Error("want targeted value true")
	}
	v, _ = b.Evaluate(context.Background(), "feature-gate-x", gate.BoolValue(false), evaluation.FromPairs(evaluation.ClusterNameKey, "kafka-cluster-c"))
	if v.Bool() {
		t.Error("want false for untargeted cluster")
	}
}
