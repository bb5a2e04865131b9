// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateModeratorKey(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		salt      string
	}{
		{"standard", "quizBuzzer", "secret-salt"},
		{"empty namespace", "", "salt"},
		{"empty salt", "finals", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := GenerateModeratorKey(tt.namespace, tt.salt)
			if key == "" {
				t.Error("GenerateModeratorKey() returned empty string")
			}
			if key != GenerateModeratorKey(tt.namespace, tt.salt) {
				t.Error("GenerateModeratorKey() is not deterministic")
			}
			if strings.ContainsAny(key, "+/=") {
				t.Errorf("GenerateModeratorKey() = %q is not URL-safe", key)
			}
			if key == GenerateModeratorKey(tt.namespace+"x", tt.salt) {
				t.Error("GenerateModeratorKey() produced same key for different namespaces")
			}
		})
	}
}

func TestValidateModeratorKey(t *testing.T) {
	salt := "test-salt"
	valid := GenerateModeratorKey("quizBuzzer", salt)

	tests := []struct {
		name      string
		namespace string
		key       string
		wantErr   bool
	}{
		{"valid key", "quizBuzzer", valid, false},
		{"wrong namespace", "finals", valid, true},
		{"tampered key", "quizBuzzer", valid + "x", true},
		{"empty key", "quizBuzzer", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModeratorKey(tt.namespace, tt.key, salt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModeratorKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err != ErrInvalidModeratorKey {
				t.Errorf("ValidateModeratorKey() error = %v, want ErrInvalidModeratorKey", err)
			}
		})
	}
}

func TestHashIP(t *testing.T) {
	h1 := HashIP("192.168.1.1", "salt")
	if len(h1) != 16 {
		t.Errorf("HashIP() length = %d, want 16", len(h1))
	}
	if h1 != HashIP("192.168.1.1", "salt") {
		t.Error("HashIP() is not deterministic")
	}
	if h1 == HashIP("192.168.1.2", "salt") {
		t.Error("HashIP() collided for different IPs")
	}
	if h1 == HashIP("192.168.1.1", "other") {
		t.Error("HashIP() ignores salt")
	}
}
