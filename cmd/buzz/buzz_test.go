// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielhkuo/quickly-buzz/identity"
	"github.com/danielhkuo/quickly-buzz/participant"
	"github.com/danielhkuo/quickly-buzz/round"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestJoinAndWhoami(t *testing.T) {
	idPath := filepath.Join(t.TempDir(), "identity.json")
	common := []string{"--store", "memory", "--identity", idPath}

	out, err := execute(t, append([]string{"whoami"}, common...)...)
	if err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	if !strings.HasPrefix(out, "Not joined") {
		t.Errorf("Expected not joined, got %q", out)
	}

	out, err = execute(t, append([]string{"join", "  Ann   Lee "}, common...)...)
	if err != nil {
		t.Fatalf("join error = %v", err)
	}
	if !strings.Contains(out, "Joined as Ann Lee (key Ann_Lee)") {
		t.Errorf("Unexpected join output %q", out)
	}

	// Each run opens a fresh memory store; the binding comes from the file.
	out, err = execute(t, append([]string{"whoami"}, common...)...)
	if err != nil {
		t.Fatalf("whoami error = %v", err)
	}
	if !strings.Contains(out, "Ann Lee (key Ann_Lee), joined") {
		t.Errorf("Unexpected whoami output %q", out)
	}

	if _, err := execute(t, append([]string{"join", "Bob"}, common...)...); err == nil || !strings.Contains(err.Error(), "already joined") {
		t.Errorf("Expected already joined error, got %v", err)
	}
}

func TestInvalidStoreType(t *testing.T) {
	_, err := execute(t, "whoami", "--store", "etcd", "--identity", filepath.Join(t.TempDir(), "id.json"))
	if err == nil {
		t.Error("Expected error for unknown store type")
	}
}

func TestDescribe(t *testing.T) {
	bound := identity.Binding{Name: "Ann", Key: "Ann"}
	testCases := []struct {
		name string
		view participant.View
		want []string
	}{
		{
			name: "not joined",
			view: participant.View{},
			want: []string{"[IDLE]", "not joined"},
		},
		{
			name: "live and ready",
			view: participant.View{Bound: true, Binding: bound, Score: 3, State: round.State{GateOpen: true}},
			want: []string{"[LIVE]", "Ann: 3", "press Enter"},
		},
		{
			name: "offline",
			view: participant.View{Stale: true, Bound: true, Binding: bound, State: round.State{GateOpen: true}},
			want: []string{"(offline)"},
		},
		{
			name: "closed",
			view: participant.View{Bound: true, Binding: bound, State: round.State{
				Winner:   &round.Claim{ParticipantID: "Bob", ClaimedAt: 1},
				RunnerUp: &round.Claim{ParticipantID: "Ann", ClaimedAt: 2},
			}},
			want: []string{"[CLOSED]", "winner=Bob", "runner-up=Ann"},
		},
		{
			name: "revoked",
			view: participant.View{Revoked: true},
			want: []string{"removed by moderator"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := describe(tc.view)
			for _, w := range tc.want {
				if !strings.Contains(got, w) {
					t.Errorf("describe() = %q, missing %q", got, w)
				}
			}
			if tc.name == "offline" && strings.Contains(got, "press Enter") {
				t.Errorf("stale view offered buzz: %q", got)
			}
		})
	}
}
