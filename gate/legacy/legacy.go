// Package legacy parses the compact feature gate string historically read
// from STRIMZI_FEATURE_GATES, e.g. "+GateA,-GateB".
//
// Each comma separated token force-enables (+) or force-disables (-) one
// boolean gate. Whitespace around tokens is ignored and the empty string
// means no overrides. Parsing is pure; it never consults a provider.
package legacy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/strimzi/featuregates/gate"
)

// EnvVar is the environment variable holding the legacy string.
const EnvVar = "STRIMZI_FEATURE_GATES"

// Overrides maps gate names to a forced boolean value.
type Overrides map[string]bool

// Lookup returns the override for name, if any.
func (o Overrides) Lookup(name string) (bool, bool) {
	v, ok := o[name]
	return v, ok
}

// Apply returns the effective value of every boolean gate of c: the
// override when present, the catalog default otherwise.
func (o Overrides) Apply(c *gate.Catalog) map[string]bool {
	m := make(map[string]bool, c.Len())
	for _, d := range c.Definitions() {
		if d.Kind() != gate.KindBool {
			continue
		}
		v, ok := o[d.Name]
		if !ok {
			v = d.Default.Bool()
		}
		m[d.Name] = v
	}
	return m
}

// String renders o in the legacy format. See Format.
func (o Overrides) String() string { return Format(o) }

// MalformedTokenError is returned for tokens that are empty or lack a +/-
// prefix, and for tokens that name a non-boolean gate.
type MalformedTokenError struct {
	Token  string
	Reason string
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("malformed feature gate token %q: %s", e.Token, e.Reason)
}

// UnknownGateError is returned for tokens naming a gate absent from the catalog.
type UnknownGateError struct {
	Name string
}

func (e *UnknownGateError) Error() string {
	return fmt.Sprintf("unknown feature gate %q", e.Name)
}

// DuplicateGateError is returned when a gate appears more than once, even
// with the same sign.
type DuplicateGateError struct {
	Name string
}

func (e *DuplicateGateError) Error() string {
	return fmt.Sprintf("feature gate %q is configured multiple times", e.Name)
}

// IsParseError reports whether err, or any error it wraps, was raised by Parse.
func IsParseError(err error) bool {
	var (
		malformed *MalformedTokenError
		unknown   *UnknownGateError
		duplicate *DuplicateGateError
	)
	return errors.As(err, &malformed) || errors.As(err, &unknown) || errors.As(err, &duplicate)
}

// Parse parses raw against catalog c. On error no overrides are returned.
func Parse(raw string, c *gate.Catalog) (Overrides, error) {
	overrides := Overrides{}
	if strings.TrimSpace(raw) == "" {
		return overrides, nil
	}
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, &MalformedTokenError{Token: token, Reason: "empty token"}
		}
		var enabled bool
		switch token[0] {
		case '+':
			enabled = true
		case '-':
			enabled = false
		default:
			return nil, &MalformedTokenError{Token: token, Reason: "missing + or - prefix"}
		}
		name := strings.TrimSpace(token[1:])
		if name == "" {
			return nil, &MalformedTokenError{Token: token, Reason: "missing gate name"}
		}
		d, err := c.Lookup(name)
		if err != nil {
			return nil, &UnknownGateError{Name: name}
		}
		if d.Kind() != gate.KindBool {
			return nil, &MalformedTokenError{Token: token, Reason: fmt.Sprintf("gate is %s, not bool", d.Kind())}
		}
		if _, ok := overrides[name]; ok {
			return nil, &DuplicateGateError{Name: name}
		}
		overrides[name] = enabled
	}
	return overrides, nil
}

// Format renders o in the legacy format with names sorted, so that
// Parse(Format(o)) yields o for any o accepted by the catalog.
func Format(o Overrides) string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	tokens := make([]string, len(names))
	for i, name := range names {
		sign := "-"
		if o[name] {
			sign = "+"
		}
		tokens[i] = sign + name
	}
	return strings.Join(tokens, ",")
}
