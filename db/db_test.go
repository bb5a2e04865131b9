// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		kind    string
		url     string
		wantErr bool
	}{
		{"memory", Memory, "", false},
		{"memory uppercase", "MEMORY", "", false},
		{"sqlite", SQLite, filepath.Join(t.TempDir(), "buzz.db"), false},
		{"postgres without url", Postgres, "", true},
		{"redis without url", Redis, "", true},
		{"unknown", "etcd", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := OpenStore(ctx, tt.kind, tt.url, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer st.Close()
			if err := st.Write(ctx, "quizBuzzer/round", []byte(`{"gateOpen":false}`)); err != nil {
				t.Errorf("Write() error = %v", err)
			}
		})
	}
}
