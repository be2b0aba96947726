package proposal

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/nostrevent"
)

func patchEvent(t *testing.T, created int64, commit, parent string) *nostrevent.Patch {
	t.Helper()
	e := &nostr.Event{
		Kind:      nostrevent.KindPatch,
		CreatedAt: nostr.Timestamp(created),
		PubKey:    "authorpubkeyaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Tags: nostr.Tags{
			{"root", "root-event-id"},
			{"c", commit},
		},
	}
	if parent != "" {
		e.Tags = append(e.Tags, nostr.Tag{"parent-commit", parent})
	}
	p, err := nostrevent.ParsePatch(e)
	if err != nil {
		t.Fatalf("ParsePatch: %v", err)
	}
	return p
}

func TestTipPicksNonParentAtMaxCreatedAt(t *testing.T) {
	root := &Root{ID: "root-event-id"}
	root.Patches = append(root.Patches,
		patchEvent(t, 100, "commit1", ""),
		patchEvent(t, 200, "commit2", "commit1"),
		patchEvent(t, 300, "commit3", "commit2"),
	)
	tip := root.Tip()
	if tip.Commit != "commit3" {
		t.Fatalf("Tip().Commit = %q, want commit3", tip.Commit)
	}
}

func TestOrderedChainWalksParentLinks(t *testing.T) {
	root := &Root{ID: "root-event-id"}
	root.Patches = append(root.Patches,
		patchEvent(t, 300, "commit3", "commit2"),
		patchEvent(t, 100, "commit1", ""),
		patchEvent(t, 200, "commit2", "commit1"),
	)
	chain := root.OrderedChain()
	if len(chain) != 3 {
		t.Fatalf("expected chain of 3, got %d", len(chain))
	}
	want := []string{"commit1", "commit2", "commit3"}
	for i, c := range want {
		if chain[i].Commit != c {
			t.Fatalf("chain[%d] = %q, want %q", i, chain[i].Commit, c)
		}
	}
}

func TestBranchNameForLocalAuthorVsOther(t *testing.T) {
	root := &Root{Author: "abc123"}
	if got := BranchName(root, "fix-bug", "abc123"); got != "pr/fix-bug" {
		t.Fatalf("local author branch = %q, want pr/fix-bug", got)
	}
	if got := BranchName(root, "fix-bug", "someoneelse"); got != "pr/abc123/fix-bug" {
		t.Fatalf("other author branch = %q, want pr/abc123/fix-bug", got)
	}
}
