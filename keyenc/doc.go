// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package keyenc derives storage keys from participant display names.

# Encoding

Encode is the only way a key is derived from a name:

	key := keyenc.Encode("  Ada Lovelace ") // "Ada_Lovelace"

The rules are: trim surrounding whitespace, replace each of . # $ / [ ]
with an underscore, and replace every whitespace run with one underscore.
Encoding is case-sensitive.

# Collisions

Names that differ only in reserved characters or whitespace share a key:

	keyenc.Encode("a.b") == keyenc.Encode("a b") // both "a_b"

Colliding participants share one ledger entry. This is accepted behavior.

# Normalization

NormalizeName cleans user input before registration. It is applied to what
users type, not to stored names, so it never changes an existing key.
*/
package keyenc
