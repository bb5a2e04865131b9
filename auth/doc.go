// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides moderator keys and token generation utilities.

# Moderator Keys

Moderator keys use HMAC-SHA256 over the round namespace:

	key := auth.GenerateModeratorKey("quizBuzzer", salt)
	err := auth.ValidateModeratorKey("quizBuzzer", key, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the server can validate it without storing it. The server logs the key once
at startup; moderators send it in the X-Moderator-Key header.

# ID Generation

Random hex IDs for request correlation:

	id, err := auth.GenerateID(8)  // 16 hex characters

# IP Hashing

Client addresses are logged only as salted hashes:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
