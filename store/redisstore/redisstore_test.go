// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-buzz/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("QB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("QB_TEST_REDIS_URL not set")
	}
	s, err := Open(context.Background(), Options{
		URL:    url,
		Prefix: "qbtest" + strconv.FormatInt(time.Now().UnixNano(), 10),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClassify(t *testing.T) {
	if err := classify("get", "x", errors.New("NOPERM this user has no permissions")); !errors.Is(err, store.ErrPermissionDenied) {
		t.Errorf("NOPERM classified as %v", err)
	}
	if err := classify("get", "x", errors.New("dial tcp: connection refused")); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("dial error classified as %v", err)
	}
}

func TestDecodeNode(t *testing.T) {
	snap, err := decodeNode("a/b", nil)
	if err != nil || snap.Exists {
		t.Errorf("empty hash = %+v, %v", snap, err)
	}
	snap, err = decodeNode("a/b", map[string]string{"v": `{"x":1}`, "r": "7", "u": "1700000000000"})
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Exists || snap.Revision != 7 || string(snap.Value) != `{"x":1}` {
		t.Errorf("decodeNode() = %+v", snap)
	}
	if _, err := decodeNode("a/b", map[string]string{"v": "1", "r": "x"}); err == nil {
		t.Error("expected error for corrupt revision")
	}
}

func TestRedisConcurrentTransactions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transact(ctx, "quiz/counter", func(cur store.Snapshot, _ uint64) ([]byte, error) {
				n := 0
				if cur.Exists {
					if err := json.Unmarshal(cur.Value, &n); err != nil {
						return nil, err
					}
				}
				return []byte(strconv.Itoa(n + 1)), nil
			})
			if err != nil {
				t.Errorf("Transact() error = %v", err)
			}
		}()
	}
	wg.Wait()

	snap, err := s.Get(ctx, "quiz/counter")
	if err != nil {
		t.Fatal(err)
	}
	if string(snap.Value) != "30" {
		t.Errorf("counter = %s, want 30", snap.Value)
	}
}

func TestRedisListAndSubscribe(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.SubscribeTree(ctx, "quiz/scores")
	if err != nil {
		t.Fatal(err)
	}
	if ev := <-ch; len(ev.Snapshots) != 0 {
		t.Fatalf("expected empty tree, got %+v", ev)
	}

	if err := s.Write(ctx, "quiz/scores/bob", []byte(`{"score":1}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-ch:
		if len(ev.Snapshots) != 1 || ev.Snapshots[0].Path != "quiz/scores/bob" {
			t.Fatalf("unexpected tree %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for tree event")
	}

	if err := s.Delete(ctx, "quiz/scores/bob"); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(ctx, "quiz/scores")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list after delete, got %+v", list)
	}
}
