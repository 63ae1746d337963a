package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/strimzi/featuregates/gate"
)

var testCatalog = func() *gate.Catalog {
	defs := make([]gate.Definition, 16)
	for i := range defs {
		defs[i] = gate.Definition{Name: fmt.Sprintf("gate-%02d", i), Default: gate.BoolValue(false)}
	}
	return gate.MustCatalog(defs...)
}()

// uniform returns a snapshot where every gate is set to enabled.
func uniform(t testing.TB, enabled bool) *gate.Snapshot {
	t.Helper()
	var entries []gate.Entry
	for _, name := range testCatalog.Names() {
		entries = append(entries, gate.Entry{Name: name, Value: gate.BoolValue(enabled)})
	}
	s, err := gate.NewSnapshot(testCatalog, "test", time.Now(), entries, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewRequiresSnapshot(t *testing.T) {
	if _, err := New(nil); err != ErrNilSnapshot {
		t.Errorf("want %v, have %v", ErrNilSnapshot, err)
	}
}

func TestPublish(t *testing.T) {
	first, second := uniform(t, false), uniform(t, true)
	s, err := New(first)
	if err != nil {
		t.Fatal(err)
	}
	if s.Current() != first {
		t.Error("want initial snapshot")
	}
	if err := s.Publish(nil); err != ErrNilSnapshot {
		t.Errorf("want %v, have %v", ErrNilSnapshot, err)
	}
	if s.Current() != first {
		t.Error("nil publish replaced the snapshot")
	}
	if err := s.Publish(second); err != nil {
		t.Fatal(err)
	}
	if s.Current() != second {
		t.Error("want published snapshot")
	}
	if want, have := uint64(2), s.Generation(); want != have {
		t.Errorf("want generation %d, have %d", want, have)
	}
}

func TestRegister(t *testing.T) {
	first, second := uniform(t, false), uniform(t, true)
	s, _ := New(first)
	c := make(chan *gate.Snapshot, 1)
	s.Register(c)
	if have := <-c; have != first {
		t.Error("want current snapshot on register")
	}
	s.Publish(second)
	if have := <-c; have != second {
		t.Error("want published snapshot")
	}

	// A full listener must not block publishing.
	s.Publish(first)
	done := make(chan struct{})
	go func() { s.Publish(second); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full listener")
	}

	s.Deregister(c)
	<-c
	s.Publish(first)
	select {
	case <-c:
		t.Error("deregistered listener notified")
	default:
	}
}

// TestConcurrentReaders must be run with -race to be meaningful: readers
// must only ever see uniform snapshots while writers flip between them.
func TestConcurrentReaders(t *testing.T) {
	on, off := uniform(t, true), uniform(t, false)
	s, _ := New(off)

	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Current()
				entries := snap.Entries()
				if len(entries) != testCatalog.Len() {
					t.Errorf("torn snapshot: %d entries", len(entries))
					return
				}
				for _, e := range entries {
					if e.Value.Bool() != entries[0].Value.Bool() {
						t.Errorf("mixed snapshot observed")
						return
					}
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			s.Publish(on)
		} else {
			s.Publish(off)
		}
	}
	close(stop)
	wg.Wait()
	if want, have := uint64(1001), s.Generation(); want != have {
		t.Errorf("want generation %d, have %d", want, have)
	}
}
