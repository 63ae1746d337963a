package featuregates

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
	"github.com/strimzi/featuregates/gate/legacy"
	"github.com/strimzi/featuregates/provider"
	"github.com/strimzi/featuregates/provider/remote"
	"github.com/strimzi/featuregates/provider/remote/inmem"
	"github.com/strimzi/featuregates/resolver"
)

const rollingUpdate = gate.ContinueReconciliationOnManualRollingUpdateFailure

func TestEnvVarProvider(t *testing.T) {
	for _, testcase := range []struct {
		raw  string
		want bool
	}{
		{"+" + rollingUpdate, true},
		{"", false},
		{"-" + rollingUpdate, false},
	} {
		lookup := env(map[string]string{legacy.EnvVar: testcase.raw})
		g, err := NewFromEnv(context.Background(), WithEnv(lookup))
		if err != nil {
			t.Fatalf("%q: %v", testcase.raw, err)
		}
		if want, have := testcase.want, g.IsEnabled(rollingUpdate); want != have {
			t.Errorf("%q: want %v, have %v", testcase.raw, want, have)
		}
		if want, have := testcase.want, g.Bool(rollingUpdate).Bool(context.Background()); want != have {
			t.Errorf("%q: typed handle: want %v, have %v", testcase.raw, want, have)
		}
		if want, have := string(provider.EnvVar), g.CurrentGates().Provider(); want != have {
			t.Errorf("want %q, have %q", want, have)
		}
	}
}

func TestEnvVarProviderIsStatic(t *testing.T) {
	vars := map[string]string{legacy.EnvVar: "+" + rollingUpdate}
	g, err := NewFromEnv(context.Background(), WithEnv(env(vars)))
	if err != nil {
		t.Fatal(err)
	}
	first := g.CurrentGates()
	vars[legacy.EnvVar] = ""
	for i := 0; i < 3; i++ {
		snap, err := g.MaybeRefresh(context.Background(), evaluation.ForCluster("ns", "c"))
		if err != nil {
			t.Fatal(err)
		}
		if snap != first {
			t.Errorf("refresh %d: want the startup snapshot", i)
		}
	}
	if !g.IsEnabled(rollingUpdate) {
		t.Error("want the startup value after the environment changed")
	}
	if _, err := g.Refresh(context.Background(), evaluation.Empty); err != nil {
		t.Fatal(err)
	}
	if want, have := uint64(1), g.State().Generation(); want != have {
		t.Errorf("generation: want %d, have %d", want, have)
	}
}

func TestStartupErrors(t *testing.T) {
	for _, testcase := range []struct {
		name  string
		env   map[string]string
		check func(error) bool
	}{
		{
			name:  "unknown provider",
			env:   map[string]string{provider.SelectionEnvVar: "flagd"},
			check: func(err error) bool { return errors.Cause(err) == provider.ErrUnknownKind },
		},
		{
			name:  "malformed token",
			env:   map[string]string{legacy.EnvVar: "UseKRaft"},
			check: legacy.IsParseError,
		},
		{
			name:  "unknown gate",
			env:   map[string]string{legacy.EnvVar: "+NoSuchGate"},
			check: legacy.IsParseError,
		},
		{
			name:  "dependency violated",
			env:   map[string]string{legacy.EnvVar: "-" + gate.KafkaNodePools},
			check: resolver.IsValidationError,
		},
		{
			name:  "remote without backend",
			env:   map[string]string{provider.SelectionEnvVar: "remote"},
			check: func(err error) bool { return err == ErrNoBackend },
		},
	} {
		t.Run(testcase.name, func(t *testing.T) {
			g, err := NewFromEnv(context.Background(), WithEnv(env(testcase.env)))
			if err == nil {
				t.Fatal("want error, have none")
			}
			if g != nil {
				t.Error("want nil Gates on error")
			}
			if !testcase.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDisablingBothDependencyAndDependentIsValid(t *testing.T) {
	raw := "-" + gate.KafkaNodePools + ",-" + gate.UseKRaft
	g, err := NewFromEnv(context.Background(), WithEnv(env(map[string]string{legacy.EnvVar: raw})))
	if err != nil {
		t.Fatal(err)
	}
	if g.IsEnabled(gate.UseKRaft) || g.IsEnabled(gate.KafkaNodePools) {
		t.Error("want both gates disabled")
	}
}

func TestRemoteTargeting(t *testing.T) {
	backend := inmem.New(map[string]inmem.Flag{
		rollingUpdate: {Rules: []inmem.Rule{
			{Match: map[string]string{evaluation.ClusterNameKey: "kafka-cluster-a", evaluation.NamespaceKey: "namespace-a"}, Value: true},
		}},
	})
	cfg := Config{Provider: provider.Remote, RefreshInterval: time.Minute}
	g, err := New(context.Background(), cfg, WithBackend(backend))
	if err != nil {
		t.Fatal(err)
	}
	if g.IsEnabled(rollingUpdate) {
		t.Error("empty context: want disabled")
	}

	var (
		ctx = context.Background()
		a   = evaluation.ForCluster("namespace-a", "kafka-cluster-a")
		b   = evaluation.ForCluster("namespace-a", "kafka-cluster-b")
		c   = evaluation.FromPairs(evaluation.ClusterNameKey, "kafka-cluster-c")
	)
	snap, err := g.MaybeRefresh(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Enabled(rollingUpdate) || !g.IsEnabledFor(a, rollingUpdate) {
		t.Error("kafka-cluster-a: want enabled")
	}
	entry, _ := snap.Entry(rollingUpdate)
	if want, have := gate.SourceProvider, entry.Source; want != have {
		t.Errorf("want %s, have %s", want, have)
	}

	for _, ec := range []evaluation.Context{b, c} {
		snap, err = g.MaybeRefresh(ctx, ec)
		if err != nil {
			t.Fatal(err)
		}
		if snap.Enabled(rollingUpdate) || g.IsEnabledFor(ec, rollingUpdate) {
			t.Errorf("%v: want disabled", ec)
		}
	}

	if g.IsEnabled(rollingUpdate) || g.CurrentGates().Enabled(rollingUpdate) {
		t.Error("shared snapshot picked up the targeting of kafka-cluster-a")
	}
	if !g.IsEnabledFor(a, rollingUpdate) {
		t.Error("kafka-cluster-a lost its targeting after other clusters refreshed")
	}

	handle := g.Bool(rollingUpdate)
	if !handle.Bool(evaluation.WithContext(ctx, a)) {
		t.Error("typed handle: want enabled for kafka-cluster-a")
	}
	if handle.Bool(evaluation.WithContext(ctx, c)) || handle.Bool(ctx) {
		t.Error("typed handle: want disabled outside kafka-cluster-a")
	}
}

func TestCanceledRefreshKeepsGates(t *testing.T) {
	backend := inmem.New(map[string]inmem.Flag{rollingUpdate: {Default: true}})
	g, err := New(context.Background(), Config{Provider: provider.Remote}, WithBackend(backend))
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsEnabled(rollingUpdate) {
		t.Fatal("want enabled")
	}
	before := g.CurrentGates()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, ec := range []evaluation.Context{evaluation.Empty, evaluation.ForCluster("ns", "c")} {
		if _, err := g.Refresh(ctx, ec); err != context.Canceled {
			t.Errorf("%v: want %v, have %v", ec, context.Canceled, err)
		}
		if !g.IsEnabledFor(ec, rollingUpdate) {
			t.Errorf("%v: canceled refresh replaced the gates with defaults", ec)
		}
	}
	if g.CurrentGates() != before || len(before.Warnings()) != 0 {
		t.Error("want the prior snapshot to stay current")
	}

	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()
	if _, err := g.MaybeRefresh(expired, evaluation.Empty); err != context.DeadlineExceeded {
		t.Errorf("want %v, have %v", context.DeadlineExceeded, err)
	}
	if g.CurrentGates() != before {
		t.Error("expired refresh replaced the snapshot")
	}
}

func TestRemoteUnavailableDegradesToDefaults(t *testing.T) {
	down := remote.BackendFunc(func(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
		return def, errors.New("connection refused")
	})
	g, err := New(context.Background(), Config{Provider: provider.Remote, RemoteTimeout: 50 * time.Millisecond},
		WithBackend(down),
		WithRemoteOptions(remote.WithoutBreaker()),
	)
	if err != nil {
		t.Fatal(err)
	}
	snap := g.CurrentGates()
	for _, d := range g.Catalog().Definitions() {
		v, _ := snap.Value(d.Name)
		if !v.Equal(d.Default) {
			t.Errorf("%s: want default %v, have %v", d.Name, d.Default, v)
		}
	}
	if want, have := g.Catalog().Len(), len(snap.Warnings()); want != have {
		t.Errorf("warnings: want %d, have %d", want, have)
	}
}

func TestRemoteRejectedRefreshKeepsSnapshot(t *testing.T) {
	backend := inmem.New(nil)
	g, err := New(context.Background(), Config{Provider: provider.Remote}, WithBackend(backend))
	if err != nil {
		t.Fatal(err)
	}
	before := g.CurrentGates()

	backend.Set(gate.KafkaNodePools, inmem.Flag{Default: false})
	snap, err := g.Refresh(context.Background(), evaluation.Empty)
	if !resolver.IsValidationError(err) {
		t.Fatalf("want validation error, have %v", err)
	}
	if snap != before || g.CurrentGates() != before {
		t.Error("want the previous snapshot to stay current")
	}
	if !g.IsEnabled(gate.UseKRaft) {
		t.Error("want UseKRaft still enabled")
	}
}

func TestRunAppliesPushedChanges(t *testing.T) {
	backend := inmem.New(nil)
	g, err := New(context.Background(), Config{Provider: provider.Remote}, WithBackend(backend))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !g.IsEnabled(rollingUpdate) {
		backend.Set(rollingUpdate, inmem.Flag{Default: true})
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for pushed change")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if want, have := context.Canceled, <-done; want != have {
		t.Errorf("want %v, have %v", want, have)
	}
}
