package gate

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Lookup for names absent from the catalog.
var ErrNotFound = errors.New("feature gate not found")

// Definition describes one feature gate. Definitions are fixed at process
// start and never change afterwards.
type Definition struct {
	Name        string
	Default     Value
	Description string

	// DependsOn lists gates that must be enabled whenever this gate is.
	DependsOn []string

	// ConflictsWith lists gates that must not be enabled together with this gate.
	ConflictsWith []string
}

// Kind returns the variant domain of the gate, taken from its default.
func (d Definition) Kind() Kind { return d.Default.Kind() }

func (d Definition) clone() Definition {
	d.DependsOn = append([]string(nil), d.DependsOn...)
	d.ConflictsWith = append([]string(nil), d.ConflictsWith...)
	return d
}

// Catalog is the static registry of known gates, in declaration order.
// It is safe for concurrent use since it is never mutated after NewCatalog.
type Catalog struct {
	defs  []Definition
	index map[string]int
}

// NewCatalog validates defs and returns a catalog holding them. Names must be
// unique and non-empty, defaults must be valid, and every DependsOn or
// ConflictsWith entry must name another boolean gate of the same catalog.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("feature gate with empty name")
		}
		if !d.Default.IsValid() {
			return nil, fmt.Errorf("feature gate %s has no default value", d.Name)
		}
		if _, ok := c.index[d.Name]; ok {
			return nil, fmt.Errorf("feature gate %s declared twice", d.Name)
		}
		c.index[d.Name] = len(c.defs)
		c.defs = append(c.defs, d.clone())
	}
	for _, d := range c.defs {
		if err := c.checkRefs(d, "depends on", d.DependsOn); err != nil {
			return nil, err
		}
		if err := c.checkRefs(d, "conflicts with", d.ConflictsWith); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on an invalid table. It is meant
// for package-level catalog declarations.
func MustCatalog(defs ...Definition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) checkRefs(d Definition, rel string, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	if d.Kind() != KindBool {
		return fmt.Errorf("feature gate %s %s other gates but is not boolean", d.Name, rel)
	}
	for _, ref := range refs {
		if ref == d.Name {
			return fmt.Errorf("feature gate %s %s itself", d.Name, rel)
		}
		i, ok := c.index[ref]
		if !ok {
			return fmt.Errorf("feature gate %s %s unknown gate %s", d.Name, rel, ref)
		}
		if c.defs[i].Kind() != KindBool {
			return fmt.Errorf("feature gate %s %s non-boolean gate %s", d.Name, rel, ref)
		}
	}
	return nil
}

// Definitions returns a copy of all definitions in declaration order.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, len(c.defs))
	for i, d := range c.defs {
		defs[i] = d.clone()
	}
	return defs
}

// Lookup returns the definition registered under name, or ErrNotFound.
func (c *Catalog) Lookup(name string) (Definition, error) {
	i, ok := c.index[name]
	if !ok {
		return Definition{}, errors.Wrap(ErrNotFound, name)
	}
	return c.defs[i].clone(), nil
}

// Has reports whether name is a known gate.
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Len returns the number of gates in the catalog.
func (c *Catalog) Len() int { return len(c.defs) }

// Names returns gate names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.defs))
	for i, d := range c.defs {
		names[i] = d.Name
	}
	return names
}
