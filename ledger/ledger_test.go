// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-buzz/round"
	"github.com/danielhkuo/quickly-buzz/store"
	"github.com/danielhkuo/quickly-buzz/store/memstore"
)

const ns = "quizBuzzer"

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newLedger(t *testing.T) (*Ledger, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	t.Cleanup(func() { st.Close() })
	return New(st, ns, quiet), st
}

var _ round.Scorer = (*Ledger)(nil)

func TestRegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)

	e, err := led.Register(ctx, "  Ann   Lee ")
	if err != nil {
		t.Fatal(err)
	}
	if e.Key != "Ann_Lee" || e.DisplayName != "Ann Lee" || e.Score != 0 {
		t.Fatalf("Register() = %+v", e)
	}

	if _, err := led.ApplyDelta(ctx, "Ann_Lee", 7, ""); err != nil {
		t.Fatal(err)
	}
	again, err := led.Register(ctx, "Ann Lee")
	if err != nil {
		t.Fatal(err)
	}
	if again.Score != 7 {
		t.Errorf("second Register() score = %d, want 7", again.Score)
	}
}

func TestRecreatedEntryGetsNewCreated(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)

	first, err := led.Register(ctx, "ann")
	if err != nil {
		t.Fatal(err)
	}
	if first.Created == 0 {
		t.Fatalf("Register() = %+v, want Created set", first)
	}
	if _, err := led.ApplyDelta(ctx, "ann", 3, ""); err != nil {
		t.Fatal(err)
	}
	kept, err := led.Get(ctx, "ann")
	if err != nil {
		t.Fatal(err)
	}
	if kept.Created != first.Created {
		t.Errorf("Created changed on update: %d -> %d", first.Created, kept.Created)
	}

	if err := led.DeleteEntry(ctx, "ann"); err != nil {
		t.Fatal(err)
	}
	again, err := led.Register(ctx, "ann")
	if err != nil {
		t.Fatal(err)
	}
	if again.Created == first.Created {
		t.Errorf("recreated entry kept Created %d", again.Created)
	}

	if err := led.DeleteEntry(ctx, "ann"); err != nil {
		t.Fatal(err)
	}
	if _, err := led.ApplyDelta(ctx, "ann", 1, ""); err != nil {
		t.Fatal(err)
	}
	viaDelta, err := led.Get(ctx, "ann")
	if err != nil {
		t.Fatal(err)
	}
	if viaDelta.Created == 0 || viaDelta.Created == again.Created {
		t.Errorf("entry recreated by ApplyDelta has Created %d", viaDelta.Created)
	}
}

func TestRegisterBackfillsDisplayName(t *testing.T) {
	ctx := context.Background()
	led, st := newLedger(t)

	if err := st.Write(ctx, Path(ns, "bob"), []byte(`{"score":4}`)); err != nil {
		t.Fatal(err)
	}
	e, err := led.Register(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if e.DisplayName != "bob" || e.Score != 4 {
		t.Errorf("Register() = %+v, want name backfilled and score kept", e)
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	led, _ := newLedger(t)
	if _, err := led.Register(context.Background(), "   "); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Register() error = %v, want ErrInvalidName", err)
	}
}

func TestScoreOperations(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)
	if _, err := led.Register(ctx, "cat"); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		name string
		op   func() error
		want int
	}{
		{"+10", func() error { _, err := led.ApplyDelta(ctx, "cat", 10, ""); return err }, 10},
		{"-5", func() error { _, err := led.ApplyDelta(ctx, "cat", -5, ""); return err }, 5},
		{"reset", func() error { return led.ResetScore(ctx, "cat") }, 0},
		{"-3", func() error { _, err := led.ApplyDelta(ctx, "cat", -3, ""); return err }, -3},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			if err := step.op(); err != nil {
				t.Fatal(err)
			}
			e, err := led.Get(ctx, "cat")
			if err != nil {
				t.Fatal(err)
			}
			if e.Score != step.want {
				t.Errorf("score = %d, want %d", e.Score, step.want)
			}
			if e.DisplayName != "cat" {
				t.Errorf("displayName = %q, want cat", e.DisplayName)
			}
		})
	}
}

func TestApplyDeltaCreatesMissingEntry(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)

	score, err := led.ApplyDelta(ctx, "Dee_Dee", 3, "Dee Dee")
	if err != nil {
		t.Fatal(err)
	}
	if score != 3 {
		t.Errorf("score = %d, want 3", score)
	}
	e, _ := led.Get(ctx, "Dee_Dee")
	if e.DisplayName != "Dee Dee" {
		t.Errorf("displayName = %q, want %q", e.DisplayName, "Dee Dee")
	}

	if _, err := led.ApplyDelta(ctx, "eve", 1, ""); err != nil {
		t.Fatal(err)
	}
	if e, _ := led.Get(ctx, "eve"); e.DisplayName != "eve" {
		t.Errorf("displayName = %q, want key fallback", e.DisplayName)
	}
}

func TestResetScoreMissingEntry(t *testing.T) {
	ctx := context.Background()
	led, st := newLedger(t)

	if err := led.ResetScore(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ResetScore() error = %v, want ErrNotFound", err)
	}
	snap, err := st.Get(ctx, Path(ns, "ghost"))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Exists {
		t.Error("ResetScore() created an entry")
	}
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)

	for _, key := range []string{"", "a b", "a.b", "a/b", " x"} {
		if _, err := led.ApplyDelta(ctx, key, 1, ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ApplyDelta(%q) error = %v, want ErrInvalidKey", key, err)
		}
		if err := led.DeleteEntry(ctx, key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("DeleteEntry(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestConcurrentDeltas(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := led.ApplyDelta(ctx, "fay", 2, ""); err != nil {
				t.Errorf("ApplyDelta() error = %v", err)
			}
		}()
	}
	wg.Wait()

	e, err := led.Get(ctx, "fay")
	if err != nil {
		t.Fatal(err)
	}
	if e.Score != 100 {
		t.Errorf("score = %d, want 100", e.Score)
	}
}

func TestBoardOrdering(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)

	for name, score := range map[string]int{"bob": 5, "Ann": 5, "cat": 9, "dan": 0} {
		if _, err := led.ApplyDelta(ctx, name, score, name); err != nil {
			t.Fatal(err)
		}
	}
	board, err := led.Board(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"cat", "Ann", "bob", "dan"}
	if len(board) != len(want) {
		t.Fatalf("board has %d entries, want %d", len(board), len(want))
	}
	for i, key := range want {
		if board[i].Key != key {
			t.Errorf("board[%d] = %s, want %s", i, board[i].Key, key)
		}
	}
}

func TestBulkActions(t *testing.T) {
	ctx := context.Background()
	led, _ := newLedger(t)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := led.ApplyDelta(ctx, name, 4, ""); err != nil {
			t.Fatal(err)
		}
	}

	if err := led.ResetAll(ctx); err != nil {
		t.Fatal(err)
	}
	board, _ := led.Board(ctx)
	for _, e := range board {
		if e.Score != 0 {
			t.Errorf("%s score = %d after ResetAll", e.Key, e.Score)
		}
	}
	if len(board) != 3 {
		t.Errorf("ResetAll() removed entries, %d left", len(board))
	}

	if err := led.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
	if board, _ := led.Board(ctx); len(board) != 0 {
		t.Errorf("DeleteAll() left %d entries", len(board))
	}
}

func TestBulkActionJoinsErrors(t *testing.T) {
	ctx := context.Background()
	var locked atomic.Bool
	deny := func(op memstore.Op, path string) error {
		if locked.Load() && op == memstore.OpWrite && path == Path(ns, "b") {
			return errors.New("locked")
		}
		return nil
	}
	st := memstore.New(memstore.WithPolicy(deny))
	defer st.Close()
	led := New(st, ns, quiet)

	for _, key := range []string{"a", "b", "c"} {
		if _, err := led.ApplyDelta(ctx, key, 1, ""); err != nil {
			t.Fatal(err)
		}
	}
	locked.Store(true)

	err := led.DeleteAll(ctx)
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Fatalf("DeleteAll() error = %v, want ErrPermissionDenied", err)
	}
	board, _ := led.Board(ctx)
	if len(board) != 1 || board[0].Key != "b" {
		t.Errorf("entries left = %+v, want only b", board)
	}
}

func TestWatchEntrySeesDeletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	led, _ := newLedger(t)

	updates, err := led.WatchEntry(ctx, "gus")
	if err != nil {
		t.Fatal(err)
	}
	recv := func() EntryUpdate {
		select {
		case u := <-updates:
			return u
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for entry update")
		}
		return EntryUpdate{}
	}

	if u := recv(); u.Present {
		t.Fatalf("first update = %+v, want absent", u)
	}
	led.Register(ctx, "gus")
	if u := recv(); !u.Present || u.Entry.DisplayName != "gus" {
		t.Fatalf("after register = %+v", u)
	}
	led.DeleteEntry(ctx, "gus")
	if u := recv(); u.Present {
		t.Errorf("after delete = %+v, want absent", u)
	}
}

func TestWatchBoard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	led, _ := newLedger(t)

	updates, err := led.WatchBoard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case u := <-updates:
		if len(u.Entries) != 0 {
			t.Fatalf("first board = %+v", u.Entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	led.ApplyDelta(ctx, "hal", 2, "")
	select {
	case u := <-updates:
		if len(u.Entries) != 1 || u.Entries[0].Score != 2 {
			t.Errorf("board = %+v", u.Entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}
