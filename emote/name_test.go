package emote

import (
	"slices"
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		raw  string
		want Name
		ok   bool
	}{
		{"/twilicorn-pleased", "/twilicorn", true},
		{"/twilicorn", "/twilicorn", true},
		{"/a-b-c", "/a", true},
		{"/", "/", true},
		{"/-", "/", true},
		{"/r/ponies", "", false},
		{"/u/someone", "", false},
		{"/r/", "", false},
		{"/rponies", "/rponies", true},
		{"/user-x", "/user", true},
		{"", "", false},
		{"ponies", "", false},
		{"-/x", "", false},
		{"http://example.com/x", "", false},
		{"#/x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Canonical(tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Canonical(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// Canonical name is always the left part of the first split, or whole string.
func TestCanonical_SplitProperty(t *testing.T) {
	inputs := []string{"/a", "/ab-c", "/ab--c", "/x-y-z", "/-y", "/a!b-", "/Ümlaut-i"}
	for _, raw := range inputs {
		got, ok := Canonical(raw)
		if !ok {
			t.Fatalf("Canonical(%q) rejected", raw)
		}
		want := raw
		if i := strings.Index(raw, "-"); i >= 0 {
			want = raw[:i]
		}
		if string(got) != want {
			t.Errorf("Canonical(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestIsCandidate(t *testing.T) {
	for _, raw := range []string{"/r/x", "/u/x", "", "x", "r/x", " /x"} {
		if IsCandidate(raw) {
			t.Errorf("IsCandidate(%q) = true", raw)
		}
	}
	for _, raw := range []string{"/x", "/R/x", "/rx", "/ux-y"} {
		if !IsCandidate(raw) {
			t.Errorf("IsCandidate(%q) = false", raw)
		}
	}
}

func TestFlags(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"/a", nil},
		{"/a-", nil},
		{"/a-r", []string{"r"}},
		{"/a-r-in", []string{"r", "in"}},
		{"/a--r", []string{"r"}},
	}
	for _, tt := range tests {
		if got := Flags(tt.raw); !slices.Equal(got, tt.want) {
			t.Errorf("Flags(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
