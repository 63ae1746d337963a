package gate

import "testing"

func TestValueAccessors(t *testing.T) {
	if v := BoolValue(true); !v.Bool() || v.Int() != 0 || v.Kind() != KindBool {
		t.Errorf("unexpected bool value %#v", v)
	}
	if v := IntValue(42); v.Int() != 42 || v.Bool() {
		t.Errorf("unexpected int value %#v", v)
	}
	if v := FloatValue(0.5); v.Float() != 0.5 {
		t.Errorf("unexpected float value %#v", v)
	}
	if v := StringValue("x"); v.Text() != "x" || v.String() != "x" {
		t.Errorf("unexpected string value %#v", v)
	}
	var zero Value
	if zero.IsValid() || zero.Interface() != nil {
		t.Errorf("zero value should be invalid")
	}
}

func TestParseValue(t *testing.T) {
	for _, testcase := range []struct {
		kind Kind
		raw  string
		want Value
		err  bool
	}{
		{KindBool, "true", BoolValue(true), false},
		{KindBool, " off ", BoolValue(false), false},
		{KindBool, "Enabled", BoolValue(true), false},
		{KindBool, "maybe", Value{}, true},
		{KindInt, "12", IntValue(12), false},
		{KindInt, "1.5", Value{}, true},
		{KindFloat, "1.5", FloatValue(1.5), false},
		{KindString, "abc", StringValue("abc"), false},
		{KindInvalid, "abc", Value{}, true},
	} {
		have, err := ParseValue(testcase.kind, testcase.raw)
		if testcase.err {
			if err == nil {
				t.Errorf("%s %q: want error, have %v", testcase.kind, testcase.raw, have)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %q: %v", testcase.kind, testcase.raw, err)
			continue
		}
		if !testcase.want.Equal(have) {
			t.Errorf("%s %q: want %v, have %v", testcase.kind, testcase.raw, testcase.want, have)
		}
	}
}

func TestFromInterface(t *testing.T) {
	if v, err := FromInterface(KindInt, float64(3)); err != nil || v.Int() != 3 {
		t.Errorf("want 3, have %v (%v)", v, err)
	}
	if _, err := FromInterface(KindInt, 3.5); err == nil {
		t.Error("want error for fractional int")
	}
	if _, err := FromInterface(KindBool, "true"); err == nil {
		t.Error("want error for string as bool")
	}
}
