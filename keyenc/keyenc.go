// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package keyenc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLen is the longest display name, in runes, accepted by NormalizeName.
const MaxNameLen = 40

// Encode maps a display name to its storage key.
// The name is trimmed, each of . # $ / [ ] becomes '_', and each run of
// whitespace becomes a single '_'. Distinct names may share a key.
func Encode(name string) string {
	name = strings.TrimSpace(name)

	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if isReserved(r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidKey reports whether key is non-empty and already in encoded form.
func ValidKey(key string) bool {
	return key != "" && Encode(key) == key
}

// NormalizeName trims a user-entered name, collapses inner whitespace to
// single spaces and caps it at MaxNameLen runes.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) <= MaxNameLen {
		return name
	}
	runes := []rune(name)
	return strings.TrimSpace(string(runes[:MaxNameLen]))
}

func isReserved(r rune) bool {
	switch r {
	case '.', '#', '$', '/', '[', ']':
		return true
	}
	return false
}
