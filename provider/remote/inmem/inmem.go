// Package inmem provides an in-process flagging backend with attribute
// targeting. It serves tests and local simulation of a remote rollout, and
// can be loaded from a YAML rules document.
package inmem

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/strimzi/featuregates/evaluation"
	"github.com/strimzi/featuregates/gate"
)

// Rule targets a value at evaluation contexts. A rule matches when every
// attribute in Match is present in the context with the same value; an
// empty Match matches every context.
type Rule struct {
	Match map[string]string `yaml:"match"`
	Value interface{}       `yaml:"value"`
}

func (r Rule) matches(ec evaluation.Context) bool {
	for k, want := range r.Match {
		if have, ok := ec.Get(k); !ok || have != want {
			return false
		}
	}
	return true
}

// Flag is the backend's view of one gate. Rules are tried in order; the first
// match wins. Without a match, Default is served, or the caller's default
// when Default is nil.
type Flag struct {
	Default interface{} `yaml:"default"`
	Rules   []Rule      `yaml:"rules"`
}

// Backend is a concurrency-safe in-memory flag store. The zero value is not
// usable; construct with New.
type Backend struct {
	mtx      sync.RWMutex
	flags    map[string]Flag
	watchers map[chan struct{}]struct{}
}

// New returns a backend serving flags.
func New(flags map[string]Flag) *Backend {
	b := &Backend{
		flags:    make(map[string]Flag, len(flags)),
		watchers: map[chan struct{}]struct{}{},
	}
	for name, f := range flags {
		b.flags[name] = f
	}
	return b
}

type document struct {
	Flags map[string]Flag `yaml:"flags"`
}

// LoadYAML reads a rules document of the form
//
//	flags:
//	  UseKRaft:
//	    default: false
//	    rules:
//	      - match: {clusterName: my-cluster, namespace: kafka}
//	        value: true
func LoadYAML(r io.Reader) (*Backend, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode flag rules")
	}
	return New(doc.Flags), nil
}

// Set replaces the named flag and notifies watchers.
func (b *Backend) Set(name string, f Flag) {
	b.mtx.Lock()
	b.flags[name] = f
	b.mtx.Unlock()
	b.notify()
}

// Delete removes the named flag and notifies watchers.
func (b *Backend) Delete(name string) {
	b.mtx.Lock()
	delete(b.flags, name)
	b.mtx.Unlock()
	b.notify()
}

// Evaluate implements remote.Backend.
func (b *Backend) Evaluate(ctx context.Context, name string, def gate.Value, ec evaluation.Context) (gate.Value, error) {
	if err := ctx.Err(); err != nil {
		return gate.Value{}, err
	}
	b.mtx.RLock()
	f, ok := b.flags[name]
	b.mtx.RUnlock()
	if !ok {
		return def, nil
	}
	for _, r := range f.Rules {
		if r.matches(ec) {
			v, err := gate.FromInterface(def.Kind(), r.Value)
			return v, errors.Wrapf(err, "flag %s", name)
		}
	}
	if f.Default == nil {
		return def, nil
	}
	v, err := gate.FromInterface(def.Kind(), f.Default)
	return v, errors.Wrapf(err, "flag %s", name)
}

// Watch implements remote.Notifier.
func (b *Backend) Watch(ctx context.Context) <-chan struct{} {
	c := make(chan struct{}, 1)
	b.mtx.Lock()
	b.watchers[c] = struct{}{}
	b.mtx.Unlock()

	out := make(chan struct{})
	go func() {
		defer close(out)
		defer func() {
			b.mtx.Lock()
			delete(b.watchers, c)
			b.mtx.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (b *Backend) notify() {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	for c := range b.watchers {
		select {
		case c <- struct{}{}:
		default: // a notification is already pending
		}
	}
}
