package gate

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if want, have := 4, c.Len(); want != have {
		t.Fatalf("want %d gates, have %d", want, have)
	}
	d, err := c.Lookup(ContinueReconciliationOnManualRollingUpdateFailure)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := BoolValue(false), d.Default; !want.Equal(have) {
		t.Errorf("want %v, have %v", want, have)
	}
	d, err = c.Lookup(UseKRaft)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := []string{KafkaNodePools}, d.DependsOn; !reflect.DeepEqual(want, have) {
		t.Errorf("want %v, have %v", want, have)
	}
}

func TestLookupNotFound(t *testing.T) {
	_, err := Default().Lookup("NoSuchGate")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, have %v", err)
	}
}

func TestDefinitionsOrderAndCopy(t *testing.T) {
	c := MustCatalog(
		Definition{Name: "b", Default: BoolValue(false)},
		Definition{Name: "a", Default: BoolValue(true), DependsOn: []string{"b"}},
	)
	defs := c.Definitions()
	if want, have := []string{"b", "a"}, []string{defs[0].Name, defs[1].Name}; !reflect.DeepEqual(want, have) {
		t.Fatalf("want %v, have %v", want, have)
	}
	defs[1].DependsOn[0] = "mutated"
	d, _ := c.Lookup("a")
	if want, have := "b", d.DependsOn[0]; want != have {
		t.Errorf("catalog was mutated through Definitions: want %q, have %q", want, have)
	}
}

func TestNewCatalogRejects(t *testing.T) {
	for _, testcase := range []struct {
		name string
		defs []Definition
	}{
		{"empty name", []Definition{{Default: BoolValue(true)}}},
		{"no default", []Definition{{Name: "a"}}},
		{"duplicate", []Definition{{Name: "a", Default: BoolValue(true)}, {Name: "a", Default: BoolValue(false)}}},
		{"self dependency", []Definition{{Name: "a", Default: BoolValue(true), DependsOn: []string{"a"}}}},
		{"unknown dependency", []Definition{{Name: "a", Default: BoolValue(true), DependsOn: []string{"b"}}}},
		{"unknown conflict", []Definition{{Name: "a", Default: BoolValue(true), ConflictsWith: []string{"b"}}}},
		{"non-bool dependent", []Definition{
			{Name: "a", Default: IntValue(1), DependsOn: []string{"b"}},
			{Name: "b", Default: BoolValue(true)},
		}},
		{"non-bool dependency", []Definition{
			{Name: "a", Default: BoolValue(true), DependsOn: []string{"b"}},
			{Name: "b", Default: StringValue("x")},
		}},
	} {
		t.Run(testcase.name, func(t *testing.T) {
			if _, err := NewCatalog(testcase.defs...); err == nil {
				t.Error("want error, have none")
			}
		})
	}
}
