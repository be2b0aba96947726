package resolver

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/refstate"
)

func TestValidateAcceptsStateWithRootCommit(t *testing.T) {
	state, err := refstate.New(map[string]string{
		"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rr := &ResolvedRepo{
		Identifier:         "repo",
		RootCommit:         "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		AuthoritativeState: state,
	}
	if err := validate(rr); err != nil {
		t.Fatalf("validate() = %v, want nil", err)
	}
}

func TestValidateRequiresRootCommitWithState(t *testing.T) {
	state, err := refstate.New(map[string]string{
		"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rr := &ResolvedRepo{Identifier: "repo", AuthoritativeState: state}
	if err := validate(rr); err == nil {
		t.Fatal("validate() = nil, want error for empty root commit")
	}
}

func TestValidateAllowsMissingState(t *testing.T) {
	rr := &ResolvedRepo{Identifier: "repo"}
	if err := validate(rr); err != nil {
		t.Fatalf("validate() = %v, want nil for state-less repo", err)
	}
}

func TestDedupByID(t *testing.T) {
	a := &nostr.Event{ID: "a"}
	b := &nostr.Event{ID: "b"}
	got := dedupByID([]*nostr.Event{a, b, a, b, a})
	if len(got) != 2 {
		t.Fatalf("dedupByID kept %d events, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("dedupByID reordered events: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestHasForbiddenPrefix(t *testing.T) {
	cases := map[string]bool{
		"refs/heads/pr/feature":     true,
		"refs/heads/pr/abc/feature": true,
		"refs/heads/main":           false,
		"refs/heads/pr":             false,
		"refs/tags/v1.0.0":          false,
	}
	for name, want := range cases {
		if got := hasForbiddenPrefix(name); got != want {
			t.Errorf("hasForbiddenPrefix(%q) = %v, want %v", name, got, want)
		}
	}
}
