package gate

import (
	"fmt"
	"time"
)

// Source records where a snapshot entry's value came from.
type Source string

// Entry sources.
const (
	// SourceProvider means the active provider answered for the gate.
	SourceProvider Source = "provider"
	// SourceDefault means the provider could not answer and the catalog
	// default was used instead.
	SourceDefault Source = "default"
)

// Entry is a single resolved gate.
type Entry struct {
	Name   string
	Value  Value
	Source Source
}

// Snapshot is an immutable, fully resolved view of every gate in a catalog.
// A Snapshot is never modified after NewSnapshot returns, so it may be shared
// freely between goroutines.
type Snapshot struct {
	entries    []Entry
	index      map[string]int
	provider   string
	resolvedAt time.Time
	warnings   []error
}

// NewSnapshot builds a snapshot over catalog c. entries must hold exactly one
// valid entry per catalog gate, of the gate's kind; they are stored in catalog
// order regardless of the order given.
func NewSnapshot(c *Catalog, provider string, resolvedAt time.Time, entries []Entry, warnings []error) (*Snapshot, error) {
	if len(entries) != c.Len() {
		return nil, fmt.Errorf("snapshot has %d entries, catalog has %d gates", len(entries), c.Len())
	}
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		d, err := c.Lookup(e.Name)
		if err != nil {
			return nil, err
		}
		if _, ok := byName[e.Name]; ok {
			return nil, fmt.Errorf("snapshot has duplicate entry for %s", e.Name)
		}
		if e.Value.Kind() != d.Kind() {
			return nil, fmt.Errorf("snapshot entry %s is %s, want %s", e.Name, e.Value.Kind(), d.Kind())
		}
		if e.Source == "" {
			e.Source = SourceProvider
		}
		byName[e.Name] = e
	}
	s := &Snapshot{
		entries:    make([]Entry, 0, len(entries)),
		index:      make(map[string]int, len(entries)),
		provider:   provider,
		resolvedAt: resolvedAt,
		warnings:   append([]error(nil), warnings...),
	}
	for _, name := range c.Names() {
		s.index[name] = len(s.entries)
		s.entries = append(s.entries, byName[name])
	}
	return s, nil
}

// Value returns the resolved value of the named gate.
func (s *Snapshot) Value(name string) (Value, bool) {
	i, ok := s.index[name]
	if !ok {
		return Value{}, false
	}
	return s.entries[i].Value, true
}

// Entry returns the full entry of the named gate.
func (s *Snapshot) Entry(name string) (Entry, bool) {
	i, ok := s.index[name]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Enabled reports whether the named gate is a boolean gate resolved to true.
// Unknown and non-boolean gates are reported as disabled.
func (s *Snapshot) Enabled(name string) bool {
	v, _ := s.Value(name)
	return v.Bool()
}

// Entries returns a copy of all entries in catalog order.
func (s *Snapshot) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of gates in the snapshot.
func (s *Snapshot) Len() int { return len(s.entries) }

// Provider names the provider that produced the snapshot.
func (s *Snapshot) Provider() string { return s.provider }

// ResolvedAt is the wall-clock time the snapshot was resolved.
func (s *Snapshot) ResolvedAt() time.Time { return s.resolvedAt }

// Warnings returns the recoverable problems met while resolving the snapshot,
// such as an unavailable remote backend.
func (s *Snapshot) Warnings() []error {
	return append([]error(nil), s.warnings...)
}

// Overrides returns the boolean gates whose value differs from the catalog
// default, keyed by name.
func (s *Snapshot) Overrides(c *Catalog) map[string]bool {
	m := map[string]bool{}
	for _, d := range c.Definitions() {
		e, ok := s.Entry(d.Name)
		if !ok || d.Kind() != KindBool {
			continue
		}
		if !e.Value.Equal(d.Default) {
			m[d.Name] = e.Value.Bool()
		}
	}
	return m
}
