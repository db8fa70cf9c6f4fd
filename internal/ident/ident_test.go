package ident

import (
	"strings"
	"testing"
)

func TestNewProducesValidIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != 43 {
			t.Fatalf("len(New()) = %d, want 43", len(id))
		}
		if !Valid(id) {
			t.Fatalf("New() produced invalid id %q", id)
		}
		if seen[id] {
			t.Fatalf("New() repeated id %q", id)
		}
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"abcDEF123_-", true},
		{"a", true},
		{strings.Repeat("x", 64), true},
		{strings.Repeat("x", 65), false},
		{"", false},
		{"../etc/passwd", false},
		{"a/b", false},
		{"a.b", false},
		{"has space", false},
		{"semi;colon", false},
		{"newline\n", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.id); got != tc.want {
			t.Fatalf("Valid(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
