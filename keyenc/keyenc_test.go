// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package keyenc

import (
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "alice", "alice"},
		{"trimmed", "  alice \t", "alice"},
		{"case preserved", "Alice", "Alice"},
		{"single space", "Ada Lovelace", "Ada_Lovelace"},
		{"whitespace run", "Ada  \t Lovelace", "Ada_Lovelace"},
		{"dot", "a.b", "a_b"},
		{"all reserved", ".#$/[]", "______"},
		{"reserved next to space", "a. b", "a__b"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"unicode kept", "Zoë", "Zoë"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.in); got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeIdempotent(t *testing.T) {
	names := []string{"alice", "Ada Lovelace", "a.b#c", "  x  y  ", "[team]/1"}
	for _, n := range names {
		once := Encode(n)
		if twice := Encode(once); twice != once {
			t.Errorf("Encode not idempotent for %q: %q then %q", n, once, twice)
		}
	}
}

func TestEncodeSafeNamesUnchanged(t *testing.T) {
	for _, n := range []string{"bob", "Bob_2", "ZOË", "player-7"} {
		if got := Encode(n); got != n {
			t.Errorf("Encode(%q) = %q, expected unchanged", n, got)
		}
	}
}

func TestEncodeCollisionIsDeterministic(t *testing.T) {
	pairs := [][2]string{
		{"a.b", "a b"},
		{"a#b", "a$b"},
		{"team[1]", "team/1/"},
		{"x  y", "x\ty"},
	}
	for _, p := range pairs {
		k1, k2 := Encode(p[0]), Encode(p[1])
		if k1 != k2 {
			t.Errorf("expected %q and %q to collide, got %q and %q", p[0], p[1], k1, k2)
		}
		for i := 0; i < 3; i++ {
			if Encode(p[0]) != k1 {
				t.Fatalf("Encode(%q) not stable", p[0])
			}
		}
	}
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"alice", true},
		{"Ada_Lovelace", true},
		{"", false},
		{"a.b", false},
		{"a b", false},
		{" alice", false},
	}
	for _, tt := range tests {
		if got := ValidKey(tt.key); got != tt.want {
			t.Errorf("ValidKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Ada   Lovelace "); got != "Ada Lovelace" {
		t.Errorf("NormalizeName collapse = %q", got)
	}

	long := strings.Repeat("x", MaxNameLen+10)
	if got := NormalizeName(long); len([]rune(got)) != MaxNameLen {
		t.Errorf("NormalizeName length = %d, want %d", len([]rune(got)), MaxNameLen)
	}

	// The cap must not leave a trailing space behind.
	spaced := strings.Repeat("a", MaxNameLen-1) + " bcd"
	if got := NormalizeName(spaced); strings.HasSuffix(got, " ") {
		t.Errorf("NormalizeName left trailing space: %q", got)
	}
}
