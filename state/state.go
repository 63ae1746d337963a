// Package state holds the process-wide current gate snapshot.
//
// A State is created once at startup from the first valid snapshot and
// passed by reference to every reconciliation loop. Readers call Current,
// which is a single atomic load: it never blocks, never performs I/O, and
// always returns a complete snapshot. Publish replaces the snapshot with a
// single pointer swap, so a reader observes either the old or the new
// snapshot, never a mix of both.
package state

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/gate"
)

// ErrNilSnapshot is returned when asked to hold a nil snapshot.
var ErrNilSnapshot = errors.New("nil feature gate snapshot")

type published struct {
	snapshot   *gate.Snapshot
	generation uint64
}

// State is the shared holder of the current snapshot.
type State struct {
	current atomic.Pointer[published]

	mtx sync.Mutex // serializes publishers and guards reg
	reg registry
}

// New returns a State whose current snapshot is initial.
func New(initial *gate.Snapshot) (*State, error) {
	if initial == nil {
		return nil, ErrNilSnapshot
	}
	s := &State{reg: registry{}}
	s.current.Store(&published{snapshot: initial, generation: 1})
	return s, nil
}

// Current returns the current snapshot.
func (s *State) Current() *gate.Snapshot {
	return s.current.Load().snapshot
}

// Generation returns the number of snapshots published so far, counting the
// initial one.
func (s *State) Generation() uint64 {
	return s.current.Load().generation
}

// Publish makes snap the current snapshot and notifies registered listeners.
func (s *State) Publish(snap *gate.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()

	prev := s.current.Load()
	s.current.Store(&published{snapshot: snap, generation: prev.generation + 1})
	s.reg.broadcast(snap)
	return nil
}

// Register adds a listener notified with every published snapshot. The
// current snapshot is offered immediately. Notifications are dropped for
// listeners that are not ready to receive, so a slow listener never delays
// publishing; use a buffered channel and re-read Current when in doubt.
func (s *State) Register(ch chan<- *gate.Snapshot) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.reg.register(ch)
	offer(ch, s.Current())
}

// Deregister removes a listener.
func (s *State) Deregister(ch chan<- *gate.Snapshot) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.reg.deregister(ch)
}

// registry is not goroutine-safe.
type registry map[chan<- *gate.Snapshot]struct{}

func (r registry) broadcast(snap *gate.Snapshot) {
	for c := range r {
		offer(c, snap)
	}
}

func (r registry) register(c chan<- *gate.Snapshot) {
	r[c] = struct{}{}
}

func (r registry) deregister(c chan<- *gate.Snapshot) {
	delete(r, c)
}

func offer(c chan<- *gate.Snapshot, snap *gate.Snapshot) {
	select {
	case c <- snap:
	default:
	}
}
