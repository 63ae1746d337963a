package flags

import (
	"context"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
)

// Source returns the latest snapshot resolved for an evaluation context,
// such as *refresh.Controller.
type Source interface {
	Snapshot(ec evaluation.Context) *gate.Snapshot
}

// Booler describes a feature flag that returns a simple boolean response
type Booler interface {
	Bool(c context.Context) bool
}

// BoolerFunc is an adapter to use a stand-alone function as a Booler
type BoolerFunc func(c context.Context) bool

// Bool conforms to the Booler interface
func (fn BoolerFunc) Bool(c context.Context) bool {
	return fn(c)
}

// Inter describes a feature flag that returns a simple int64 response
type Inter interface {
	Int(c context.Context) int64
}

// InterFunc is an adapter to use a stand-alone function as an Inter
type InterFunc func(c context.Context) int64

// Int conforms to the Inter interface
func (fn InterFunc) Int(c context.Context) int64 {
	return fn(c)
}

// Floater describes a feature flag that returns a simple float64 response
type Floater interface {
	Float(c context.Context) float64
}

// FloaterFunc is an adapter to use a stand-alone function as a Floater
type FloaterFunc func(c context.Context) float64

// Float conforms to the Floater interface
func (fn FloaterFunc) Float(c context.Context) float64 {
	return fn(c)
}

// Stringer describes a feature flag that returns a simple string response
type Stringer interface {
	String(c context.Context) string
}

// StringerFunc is an adapter to use a stand-alone function as a Stringer
type StringerFunc func(c context.Context) string

// String conforms to the Stringer interface
func (fn StringerFunc) String(c context.Context) string {
	return fn(c)
}

// NewBooler returns a Booler reporting whether the named gate is enabled in
// the snapshot src holds for the evaluation context carried by c.
func NewBooler(src Source, name string) Booler {
	return BoolerFunc(func(c context.Context) bool {
		return src.Snapshot(evaluation.FromContext(c)).Enabled(name)
	})
}

// NewInter returns an Inter reading the named integer gate from src.
func NewInter(src Source, name string) Inter {
	return InterFunc(func(c context.Context) int64 {
		return value(c, src, name).Int()
	})
}

// NewFloater returns a Floater reading the named float gate from src.
func NewFloater(src Source, name string) Floater {
	return FloaterFunc(func(c context.Context) float64 {
		return value(c, src, name).Float()
	})
}

// NewStringer returns a Stringer reading the named string gate from src.
func NewStringer(src Source, name string) Stringer {
	return StringerFunc(func(c context.Context) string {
		return value(c, src, name).Text()
	})
}

func value(c context.Context, src Source, name string) gate.Value {
	v, _ := src.Snapshot(evaluation.FromContext(c)).Value(name)
	return v
}
