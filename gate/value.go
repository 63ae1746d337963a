package gate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the variant domain of a gate.
type Kind int

// The supported gate kinds. The zero Kind is invalid.
const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a resolved gate value. The zero Value is invalid and is never
// stored in a Snapshot.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue returns an integer Value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue returns a floating point Value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the variant domain of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v carries a value of a known kind.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Bool returns the boolean held by v, or false for any other kind.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Int returns the integer held by v, or 0 for any other kind.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.i
}

// Float returns the float held by v, or 0 for any other kind.
func (v Value) Float() float64 {
	if v.kind != KindFloat {
		return 0
	}
	return v.f
}

// Text returns the string held by v, or "" for any other kind.
func (v Value) Text() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// Equal reports whether v and o have the same kind and value.
func (v Value) Equal(o Value) bool { return v == o }

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return "<invalid>"
	}
}

// Interface returns the Go value held by v, or nil when v is invalid.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// ParseValue decodes raw as a value of kind k. Boolean values accept the
// forms understood by strconv.ParseBool plus "on"/"off" and "enabled"/"disabled".
func ParseValue(k Kind, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	switch k {
	case KindBool:
		switch strings.ToLower(raw) {
		case "on", "enabled":
			return BoolValue(true), nil
		case "off", "disabled":
			return BoolValue(false), nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parse %s value %q", k, raw)
		}
		return BoolValue(b), nil
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parse %s value %q", k, raw)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parse %s value %q", k, raw)
		}
		return FloatValue(f), nil
	case KindString:
		return StringValue(raw), nil
	default:
		return Value{}, fmt.Errorf("cannot parse value of kind %s", k)
	}
}

// FromInterface converts a decoded JSON/YAML scalar into a Value of kind k.
// Numeric conversions are permitted between the integer and float forms a
// decoder may produce.
func FromInterface(k Kind, x interface{}) (Value, error) {
	switch k {
	case KindBool:
		if b, ok := x.(bool); ok {
			return BoolValue(b), nil
		}
	case KindInt:
		switch n := x.(type) {
		case int:
			return IntValue(int64(n)), nil
		case int64:
			return IntValue(n), nil
		case float64:
			if n == float64(int64(n)) {
				return IntValue(int64(n)), nil
			}
		}
	case KindFloat:
		switch n := x.(type) {
		case int:
			return FloatValue(float64(n)), nil
		case int64:
			return FloatValue(float64(n)), nil
		case float64:
			return FloatValue(n), nil
		}
	case KindString:
		if s, ok := x.(string); ok {
			return StringValue(s), nil
		}
	}
	return Value{}, fmt.Errorf("cannot use %T as %s value", x, k)
}
