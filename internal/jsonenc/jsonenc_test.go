package jsonenc

import (
	"math"
	"testing"
)

var encodeStringTests = []struct {
	in  string
	out string
}{
	{"", `""`},
	{"\\", `"\\"`},
	{"\x00", `"\u0000"`},
	{"\x09", `"\t"`},
	{"\x0a", `"\n"`},
	{"\x0d", `"\r"`},
	{"ascii", `"ascii"`},
	{"\"a", `"\"a"`},
	{"foo\"bar\"baz", `"foo\"bar\"baz"`},
	{"✭", `"✭"`},
	{"emoji ❤️!", `"emoji ❤️!"`},
	{"<", `"<"`}, // unlike encoding/json, jsonenc never escapes '<'/'>'/'&'
}

func TestAppendString(t *testing.T) {
	for _, tt := range encodeStringTests {
		b := AppendString([]byte{}, tt.in)
		if got, want := string(b), tt.out; got != want {
			t.Errorf("AppendString(%q) = %#q, want %#q", tt.in, got, want)
		}
	}
}

var encodeFloat64Tests = []struct {
	in  float64
	out string
}{
	{0, "0"},
	{1, "1"},
	{-1, "-1"},
	{1.5, "1.5"},
	{1e22, "1e+22"},
	{1e-7, "1e-07"},
}

func TestAppendFloat64(t *testing.T) {
	for _, tt := range encodeFloat64Tests {
		b := AppendFloat64([]byte{}, tt.in)
		if got, want := string(b), tt.out; got != want {
			t.Errorf("AppendFloat64(%v) = %q, want %q", tt.in, got, want)
		}
	}
}

func TestAppendFloat64_SpecialValues(t *testing.T) {
	for _, tt := range []struct {
		in  float64
		out string
	}{
		{math.NaN(), `"NaN"`},
		{math.Inf(1), `"Infinity"`},
		{math.Inf(-1), `"-Infinity"`},
	} {
		b := AppendFloat64([]byte{}, tt.in)
		if got, want := string(b), tt.out; got != want {
			t.Errorf("AppendFloat64(%v) = %q, want %q", tt.in, got, want)
		}
	}
}
