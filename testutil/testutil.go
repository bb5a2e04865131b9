// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/danielhkuo/quickly-buzz/auth"
	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/db"
	"github.com/danielhkuo/quickly-buzz/models"
	"github.com/danielhkuo/quickly-buzz/store"
)

// SetupTestStore opens an in-memory store closed at test cleanup
func SetupTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := db.OpenStore(context.Background(), db.Memory, "", nil)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// SetupSQLiteStore opens a store backed by a fresh SQLite file
func SetupSQLiteStore(t *testing.T) store.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "buzz.db")
	st, err := db.OpenStore(context.Background(), db.SQLite, path, nil)
	if err != nil {
		t.Fatalf("Failed to open SQLite test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		StoreConfig: cliparse.StoreConfig{
			StoreType:  db.Memory,
			Namespace:  "quizBuzzer",
			SecondSlot: true,
		},
		Port:             3318,
		ModeratorKeySalt: "test-moderator-salt",
		LogLevel:         "info",
	}
}

// ModeratorHeaders returns headers carrying a valid moderator key
func ModeratorHeaders(cfg cliparse.Config) map[string]string {
	return map[string]string{
		models.ModeratorKeyHeader: auth.GenerateModeratorKey(cfg.Namespace, cfg.ModeratorKeySalt),
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
