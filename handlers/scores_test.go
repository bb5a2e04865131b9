// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quickly-buzz/models"
	"github.com/danielhkuo/quickly-buzz/testutil"
)

func jsonDecode(w *httptest.ResponseRecorder, v interface{}) error {
	return json.NewDecoder(w.Body).Decode(v)
}

func withKey(r *http.Request, key string) *http.Request {
	r.SetPathValue("key", key)
	return r
}

func register(t *testing.T, h *ScoreHandler, name string) models.Entry {
	t.Helper()
	w := httptest.NewRecorder()
	h.Register(w, testutil.MakeRequest("POST", "/participants", models.RegisterRequest{Name: name}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var e models.Entry
	testutil.AssertJSON(t, w, &e)
	return e
}

func TestRegisterParticipant(t *testing.T) {
	st := testutil.SetupTestStore(t)
	h := NewScoreHandler(st, testutil.GetTestConfig())

	e := register(t, h, "  Ann   Lee ")
	if e.Key != "Ann_Lee" || e.DisplayName != "Ann Lee" || e.Score != 0 {
		t.Errorf("Unexpected entry %+v", e)
	}

	// Registering again is a no-op
	if again := register(t, h, "Ann Lee"); again != e {
		t.Errorf("Expected %+v, got %+v", e, again)
	}

	w := httptest.NewRecorder()
	h.Register(w, testutil.MakeRequest("POST", "/participants", models.RegisterRequest{Name: ""}, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestScoreModeration(t *testing.T) {
	st := testutil.SetupTestStore(t)
	cfg := testutil.GetTestConfig()
	h := NewScoreHandler(st, cfg)
	mod := testutil.ModeratorHeaders(cfg)
	register(t, h, "Bob")

	delta := func(d int) models.ScoreResponse {
		t.Helper()
		w := httptest.NewRecorder()
		h.Delta(w, withKey(testutil.MakeRequest("POST", "/scores/Bob/delta", models.DeltaRequest{Delta: d}, mod), "Bob"))
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.ScoreResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	if got := delta(10); got.Score != 10 {
		t.Errorf("Expected 10, got %d", got.Score)
	}
	if got := delta(-5); got.Score != 5 {
		t.Errorf("Expected 5, got %d", got.Score)
	}

	w := httptest.NewRecorder()
	h.Reset(w, withKey(testutil.MakeRequest("POST", "/scores/Bob/reset", nil, mod), "Bob"))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	h.Get(w, withKey(testutil.MakeRequest("GET", "/scores/Bob", nil, nil), "Bob"))
	var e models.Entry
	testutil.AssertJSON(t, w, &e)
	if e.Score != 0 || e.DisplayName != "Bob" {
		t.Errorf("Expected reset entry, got %+v", e)
	}

	// Reset of a missing entry is 404 and creates nothing
	w = httptest.NewRecorder()
	h.Reset(w, withKey(testutil.MakeRequest("POST", "/scores/Ghost/reset", nil, mod), "Ghost"))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = httptest.NewRecorder()
	h.Delete(w, withKey(testutil.MakeRequest("DELETE", "/scores/Bob", nil, mod), "Bob"))
	testutil.AssertStatus(t, w, http.StatusNoContent)

	w = httptest.NewRecorder()
	h.Get(w, withKey(testutil.MakeRequest("GET", "/scores/Bob", nil, nil), "Bob"))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestDeltaValidation(t *testing.T) {
	st := testutil.SetupTestStore(t)
	cfg := testutil.GetTestConfig()
	h := NewScoreHandler(st, cfg)
	mod := testutil.ModeratorHeaders(cfg)

	testCases := []struct {
		name    string
		key     string
		body    interface{}
		headers map[string]string
		status  int
	}{
		{"no key header", "Ann", models.DeltaRequest{Delta: 1}, nil, http.StatusUnauthorized},
		{"unencoded key", "Ann Lee", models.DeltaRequest{Delta: 1}, mod, http.StatusBadRequest},
		{"zero delta", "Ann", models.DeltaRequest{Delta: 0}, mod, http.StatusBadRequest},
		{"bad json", "Ann", nil, mod, http.StatusBadRequest},
		{"missing entry is created", "New_Player", models.DeltaRequest{Delta: 4, Name: "New Player"}, mod, http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Delta(w, withKey(testutil.MakeRequest("POST", "/scores/x/delta", tc.body, tc.headers), tc.key))
			testutil.AssertStatus(t, w, tc.status)
		})
	}
}

func TestScoreboard(t *testing.T) {
	st := testutil.SetupTestStore(t)
	cfg := testutil.GetTestConfig()
	h := NewScoreHandler(st, cfg)
	mod := testutil.ModeratorHeaders(cfg)

	for key, d := range map[string]int{"Ann": 3, "Bob": 7, "Cat": 3} {
		w := httptest.NewRecorder()
		h.Delta(w, withKey(testutil.MakeRequest("POST", "/scores/"+key+"/delta", models.DeltaRequest{Delta: d}, mod), key))
		testutil.AssertStatus(t, w, http.StatusOK)
	}

	w := httptest.NewRecorder()
	h.List(w, testutil.MakeRequest("GET", "/scores", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var board models.Scoreboard
	testutil.AssertJSON(t, w, &board)

	want := []string{"Bob", "Ann", "Cat"}
	if len(board.Entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(board.Entries))
	}
	for i, key := range want {
		if board.Entries[i].Key != key {
			t.Errorf("Entry %d: expected %s, got %s", i, key, board.Entries[i].Key)
		}
	}

	w = httptest.NewRecorder()
	h.ResetAll(w, testutil.MakeRequest("POST", "/scores/reset-all", nil, mod))
	testutil.AssertStatus(t, w, http.StatusOK)
	var bulk models.BulkResponse
	testutil.AssertJSON(t, w, &bulk)
	if bulk.Affected != 3 {
		t.Errorf("Expected 3 affected, got %d", bulk.Affected)
	}

	w = httptest.NewRecorder()
	h.DeleteAll(w, testutil.MakeRequest("DELETE", "/scores", nil, mod))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	h.List(w, testutil.MakeRequest("GET", "/scores", nil, nil))
	testutil.AssertJSON(t, w, &board)
	if len(board.Entries) != 0 {
		t.Errorf("Expected empty board, got %+v", board.Entries)
	}
}
