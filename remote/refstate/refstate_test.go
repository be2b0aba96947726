package refstate_test

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/nostrsync/ngit/remote/refstate"
)

func TestNewRejectsForbiddenPrRef(t *testing.T) {
	_, err := refstate.New(map[string]string{"refs/heads/pr/abc123": "deadbeef"})
	if err != refstate.ErrForbiddenRef {
		t.Fatalf("New() error = %v, want ErrForbiddenRef", err)
	}
}

func TestFromEventRoundTrip(t *testing.T) {
	refs := map[string]string{
		"HEAD":            "ref: refs/heads/main",
		"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"refs/tags/v1":    "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	state, err := refstate.New(refs)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ev := &nostr.Event{
		Kind: nostrevent.KindRepoState,
		Tags: append(nostr.Tags{{"d", "my-repo"}}, state.Tags()...),
	}

	readBack, err := refstate.FromEvent(ev)
	if err != nil {
		t.Fatalf("FromEvent() error = %v", err)
	}

	if !state.Equal(readBack) {
		t.Fatalf("read(write(state)) != state: got %v, want %v", readBack.Names(), state.Names())
	}
	for name, want := range refs {
		got, ok := readBack.Get(name)
		if !ok || got != want {
			t.Errorf("Get(%q) = %q, %v, want %q, true", name, got, ok, want)
		}
	}
}

func TestFromEventRejectsForbiddenPrRef(t *testing.T) {
	ev := &nostr.Event{
		Kind: nostrevent.KindRepoState,
		Tags: nostr.Tags{
			{"d", "my-repo"},
			{"refs/heads/pr/abc123", "deadbeef"},
		},
	}
	if _, err := refstate.FromEvent(ev); err == nil {
		t.Fatal("FromEvent() error = nil, want error for forbidden pr ref")
	}
}

func TestResolveExplicitEntryWinsOverSymref(t *testing.T) {
	// When HEAD (a symref) and the explicit ref it targets disagree,
	// the explicit entry wins.
	state, err := refstate.New(map[string]string{
		"HEAD":            "ref: refs/heads/main",
		"refs/heads/main": "cccccccccccccccccccccccccccccccccccccccc",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	oid, ok := state.Resolve("HEAD")
	if !ok || oid != "cccccccccccccccccccccccccccccccccccccccc" {
		t.Fatalf("Resolve(HEAD) = %q, %v, want explicit refs/heads/main value", oid, ok)
	}
}

func TestResolveDetectsSymrefCycle(t *testing.T) {
	state, err := refstate.New(map[string]string{
		"HEAD":            "ref: refs/heads/loop",
		"refs/heads/loop": "ref: HEAD",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := state.Resolve("HEAD"); ok {
		t.Fatal("Resolve(HEAD) ok = true, want false for a symref cycle")
	}
}

func TestMergeOverlayDeletesOnEmptyValue(t *testing.T) {
	base, err := refstate.New(map[string]string{
		"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"refs/heads/old":  "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	merged, err := base.Merge(map[string]string{
		"refs/heads/old":     "",
		"refs/heads/feature": "cccccccccccccccccccccccccccccccccccccccc",
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if _, ok := merged.Get("refs/heads/old"); ok {
		t.Error("Merge() kept refs/heads/old, want deleted")
	}
	if v, ok := merged.Get("refs/heads/feature"); !ok || v != "cccccccccccccccccccccccccccccccccccccccc" {
		t.Errorf("Merge() refs/heads/feature = %q, %v, want new tip", v, ok)
	}
	if v, ok := merged.Get("refs/heads/main"); !ok || v != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Errorf("Merge() refs/heads/main = %q, %v, want carried over from base", v, ok)
	}
}

func TestMergeRejectsForbiddenPrRef(t *testing.T) {
	base, err := refstate.New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := base.Merge(map[string]string{"refs/heads/pr/abc": "deadbeef"}); err != refstate.ErrForbiddenRef {
		t.Fatalf("Merge() error = %v, want ErrForbiddenRef", err)
	}
}
