// Package evaluation provides the targeting attributes passed alongside a
// resolution request, so that remote providers can scope a rollout to a
// cluster, a namespace, or any other attribute.
package evaluation

import (
	"context"
	"strconv"
	"strings"
)

// Well known attribute names.
const (
	ClusterNameKey = "clusterName"
	NamespaceKey   = "namespace"
)

// Attribute is one targeting attribute.
type Attribute struct {
	Key   string
	Value string
}

// Context is an ordered, immutable set of attributes. The zero Context is
// empty and ready to use. A Context never changes after construction, so it
// can be handed to providers without copying.
type Context struct {
	attrs []Attribute
}

// Empty is the Context without attributes.
var Empty = Context{}

// New returns a Context holding attrs in the given order. A later attribute
// replaces an earlier one with the same key, keeping the earlier position.
func New(attrs ...Attribute) Context {
	var c Context
	for _, a := range attrs {
		c = c.with(a)
	}
	return c
}

// FromPairs builds a Context from alternating keys and values. A trailing key
// without a value is paired with the empty string.
func FromPairs(keyvals ...string) Context {
	attrs := make([]Attribute, 0, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		a := Attribute{Key: keyvals[i]}
		if i+1 < len(keyvals) {
			a.Value = keyvals[i+1]
		}
		attrs = append(attrs, a)
	}
	return New(attrs...)
}

// ForCluster returns the Context usually built by a reconciliation pass for
// one custom resource.
func ForCluster(namespace, clusterName string) Context {
	return New(Attribute{ClusterNameKey, clusterName}, Attribute{NamespaceKey, namespace})
}

// With returns a new Context with key set to value. c is left untouched.
func (c Context) With(key, value string) Context {
	return c.with(Attribute{Key: key, Value: value})
}

func (c Context) with(a Attribute) Context {
	attrs := make([]Attribute, len(c.attrs), len(c.attrs)+1)
	copy(attrs, c.attrs)
	for i := range attrs {
		if attrs[i].Key == a.Key {
			attrs[i].Value = a.Value
			return Context{attrs: attrs}
		}
	}
	return Context{attrs: append(attrs, a)}
}

// Get returns the value of key.
func (c Context) Get(key string) (string, bool) {
	for _, a := range c.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// ClusterName returns the clusterName attribute, or "".
func (c Context) ClusterName() string {
	v, _ := c.Get(ClusterNameKey)
	return v
}

// Namespace returns the namespace attribute, or "".
func (c Context) Namespace() string {
	v, _ := c.Get(NamespaceKey)
	return v
}

// Attributes returns a copy of the attributes in order.
func (c Context) Attributes() []Attribute {
	return append([]Attribute(nil), c.attrs...)
}

// Map returns the attributes as a map.
func (c Context) Map() map[string]string {
	m := make(map[string]string, len(c.attrs))
	for _, a := range c.attrs {
		m[a.Key] = a.Value
	}
	return m
}

// Len returns the number of attributes.
func (c Context) Len() int { return len(c.attrs) }

// IsEmpty reports whether c has no attributes.
func (c Context) IsEmpty() bool { return len(c.attrs) == 0 }

// Key returns a string that identifies c's contents. Contexts with the same
// attributes in the same order share a key.
func (c Context) Key() string {
	var b strings.Builder
	for i, a := range c.attrs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(a.Key))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(a.Value))
	}
	return b.String()
}

func (c Context) String() string { return "{" + c.Key() + "}" }

type contextKey int

const evaluationContextKey contextKey = 0

// WithContext returns a copy of ctx carrying ec, for code paths where the
// evaluation context travels with a context.Context.
func WithContext(ctx context.Context, ec Context) context.Context {
	return context.WithValue(ctx, evaluationContextKey, ec)
}

// FromContext returns the evaluation context stored in ctx, or Empty.
func FromContext(ctx context.Context) Context {
	ec, ok := ctx.Value(evaluationContextKey).(Context)
	if !ok {
		return Empty
	}
	return ec
}
