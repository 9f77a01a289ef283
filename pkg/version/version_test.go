package version

import (
	"testing"
)

// Vectors follow the apk-tools comparison semantics.
var compareTests = []struct {
	a    string
	b    string
	want int
}{
	{"1.0", "1.0", Equal},
	{"1.0", "1.1", Less},
	{"1.0.2", "1.0.3", Less},
	{"1.1", "1.10", Less},
	{"1.10", "1.9", Greater},
	{"2.10.0", "2.9.9", Greater},
	{"1.0.1", "1.0", Greater},
	{"1.0", "1.0.1", Less},
	{"1.0_alpha", "1.0", Less},
	{"1.0_alpha1", "1.0_alpha2", Less},
	{"1.0_alpha", "1.0_beta", Less},
	{"1.0_rc3", "1.0", Less},
	{"1.0", "1.0_p1", Less},
	{"1.0_git20200101", "1.0", Greater},
	{"1.0a", "1.0", Greater},
	{"1.0a", "1.0b", Less},
	{"1.0-r0", "1.0-r1", Less},
	{"1.0", "1.0-r1", Less},
	{"1.2.3-r4", "1.2.3-r4", Equal},
	{"0.1.0_alpha", "0.1.3", Less},
}

func TestCompare(t *testing.T) {
	for _, tt := range compareTests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	for _, tt := range compareTests {
		fwd := Compare(tt.a, tt.b)
		rev := Compare(tt.b, tt.a)
		if fwd != -rev {
			t.Errorf("Compare(%q, %q) = %d but Compare(%q, %q) = %d", tt.a, tt.b, fwd, tt.b, tt.a, rev)
		}
	}
}

func TestCompareIdempotent(t *testing.T) {
	for _, tt := range compareTests {
		for _, v := range []string{tt.a, tt.b} {
			if got := Compare(v, v); got != Equal {
				t.Errorf("Compare(%q, %q) = %d, want Equal", v, v, got)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"1.0", "1.2.3-r4", "1.0_alpha1", "0.5.0_git20210203", "3.14a"}
	invalid := []string{"", "a", "1.0_bogus", "1.0-q1", "_1"}

	for _, v := range valid {
		if !Validate(v) {
			t.Errorf("Validate(%q) = false, want true", v)
		}
	}
	for _, v := range invalid {
		if Validate(v) {
			t.Errorf("Validate(%q) = true, want false", v)
		}
	}
}

func TestCheckString(t *testing.T) {
	tests := []struct {
		version    string
		constraint string
		want       bool
	}{
		{"3.2.4", ">=0.0.0", true},
		{"3.2.4", ">=3.2.4", true},
		{"3.2.4", "<4.0.0", true},
		{"0.0.0", ">=0.0.1", false},
		{"4.0.0", "<4.0.0", false},
		{"4.0.1", "<4.0.0", false},
		{"1.2.3-r4", "=1.2.3-r4", true},
		{"1.2.3-r4", ">1.2.3-r3", true},
	}
	for _, tt := range tests {
		if got := CheckString(tt.version, tt.constraint); got != tt.want {
			t.Errorf("CheckString(%q, %q) = %v, want %v", tt.version, tt.constraint, got, tt.want)
		}
	}
}
