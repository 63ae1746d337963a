package evaluation

import (
	"context"
	"reflect"
	"testing"
)

func TestNewKeepsOrderAndReplaces(t *testing.T) {
	c := New(Attribute{"b", "1"}, Attribute{"a", "2"}, Attribute{"b", "3"})
	want := []Attribute{{"b", "3"}, {"a", "2"}}
	if have := c.Attributes(); !reflect.DeepEqual(want, have) {
		t.Errorf("want %v, have %v", want, have)
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	base := ForCluster("namespace-a", "kafka-cluster-a")
	derived := base.With(NamespaceKey, "namespace-b").With("tier", "gold")

	if want, have := "namespace-a", base.Namespace(); want != have {
		t.Errorf("base mutated: want %q, have %q", want, have)
	}
	if want, have := 2, base.Len(); want != have {
		t.Errorf("base mutated: want %d attributes, have %d", want, have)
	}
	if want, have := "namespace-b", derived.Namespace(); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if v, ok := derived.Get("tier"); !ok || v != "gold" {
		t.Errorf("want gold, have %q (%v)", v, ok)
	}

	attrs := base.Attributes()
	attrs[0].Value = "changed"
	if want, have := "kafka-cluster-a", base.ClusterName(); want != have {
		t.Errorf("base mutated through Attributes: want %q, have %q", want, have)
	}
}

func TestKey(t *testing.T) {
	a := FromPairs(ClusterNameKey, "x", NamespaceKey, "y")
	b := ForCluster("y", "x")
	if a.Key() != b.Key() {
		t.Errorf("want equal keys, have %q and %q", a.Key(), b.Key())
	}
	if a.Key() == FromPairs(ClusterNameKey, "x,", NamespaceKey, "y").Key() {
		t.Error("keys should not collide on separator characters")
	}
	if Empty.Key() != "" || !Empty.IsEmpty() {
		t.Errorf("unexpected empty context %v", Empty)
	}
}

func TestFromPairsOddLength(t *testing.T) {
	c := FromPairs("a", "1", "b")
	if v, ok := c.Get("b"); !ok || v != "" {
		t.Errorf("want empty value for trailing key, have %q (%v)", v, ok)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if have := FromContext(context.Background()); !have.IsEmpty() {
		t.Errorf("want empty, have %v", have)
	}
	ec := ForCluster("ns", "c")
	ctx := WithContext(context.Background(), ec)
	if want, have := ec.Key(), FromContext(ctx).Key(); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}
