// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidModeratorKey = errors.New("invalid moderator key")

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateModeratorKey creates the HMAC-based moderator key for a namespace
// This is deterministic and verifiable
func GenerateModeratorKey(namespace, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(namespace))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateModeratorKey checks if the provided key is valid for the namespace
func ValidateModeratorKey(namespace, key, salt string) error {
	if key == "" {
		return ErrInvalidModeratorKey
	}
	expected := GenerateModeratorKey(namespace, salt)
	if !hmac.Equal([]byte(key), []byte(expected)) {
		return ErrInvalidModeratorKey
	}
	return nil
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for log correlation
	return hex.EncodeToString(sum[:8])
}
