package nostrevent_test

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/nostrevent"
)

func stateEvent(createdAt int64, refs map[string]string) *nostr.Event {
	tags := nostr.Tags{{"d", "my-repo"}}
	for name, value := range refs {
		tags = append(tags, nostr.Tag{name, value})
	}
	return &nostr.Event{Kind: nostrevent.KindRepoState, CreatedAt: nostr.Timestamp(createdAt), Tags: tags}
}

func TestParseStateIgnoresUnrecognizedRefNames(t *testing.T) {
	e := stateEvent(1, map[string]string{
		"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"refs/notes/foo":  "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	})
	s, err := nostrevent.ParseState(e)
	if err != nil {
		t.Fatalf("ParseState() error = %v", err)
	}
	if _, ok := s.Refs["refs/notes/foo"]; ok {
		t.Error("ParseState() kept an unrecognized ref name, want it dropped")
	}
	if _, ok := s.Refs["refs/heads/main"]; !ok {
		t.Error("ParseState() dropped refs/heads/main, want it kept")
	}
}

func TestParseStateRejectsForbiddenPrRef(t *testing.T) {
	e := stateEvent(1, map[string]string{"refs/heads/pr/abc": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})
	if _, err := nostrevent.ParseState(e); err == nil {
		t.Fatal("ParseState() error = nil, want error for forbidden refs/heads/pr/* tag")
	}
}

func TestParseStateRejectsWrongKind(t *testing.T) {
	e := &nostr.Event{Kind: nostrevent.KindRepoAnnouncement}
	if _, err := nostrevent.ParseState(e); err == nil {
		t.Fatal("ParseState() error = nil, want error for non-RepoState event")
	}
}

func TestNewestStatePicksLargestCreatedAt(t *testing.T) {
	older := stateEvent(100, map[string]string{"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})
	newer := stateEvent(200, map[string]string{"refs/heads/main": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"})
	got := nostrevent.NewestState([]*nostr.Event{older, newer})
	if got != newer {
		t.Error("NewestState() did not pick the event with the largest created_at")
	}
}

func TestNewestStateIgnoresOtherKinds(t *testing.T) {
	ann := &nostr.Event{Kind: nostrevent.KindRepoAnnouncement, CreatedAt: 300}
	state := stateEvent(100, map[string]string{"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})
	got := nostrevent.NewestState([]*nostr.Event{ann, state})
	if got != state {
		t.Error("NewestState() must only consider RepoState-kind events")
	}
}
