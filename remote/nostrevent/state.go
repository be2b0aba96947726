package nostrevent

import (
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/pkg/errors"
)

// State is the typed form of a RepoState event: a signed replaceable
// event whose tags enumerate (ref-name, value) pairs, where value is
// either a 40-hex oid or a symbolic reference "ref: refs/...".
type State struct {
	Event *nostr.Event
	// Refs maps a fully-qualified ref name (or the literal "HEAD") to
	// either a 40-hex oid or "ref: refs/heads/<target>".
	Refs map[string]string
}

// ParseState builds a State from a raw RepoState event. Only refs under
// refs/heads/, refs/tags/, or the literal HEAD are recognized;
// refs/heads/pr/* is rejected since those names are reserved for
// materialized proposals.
func ParseState(e *nostr.Event) (*State, error) {
	if e.Kind != KindRepoState {
		return nil, errors.Errorf("event kind %d is not a repo state", e.Kind)
	}
	s := &State{Event: e, Refs: map[string]string{}}
	for _, t := range e.Tags {
		if len(t) < 2 {
			continue
		}
		name, value := t[0], t[1]
		if name == "d" || name == "p" || name == "relays" || name == "clone" {
			continue
		}
		if !isRecognizedRefName(name) {
			continue
		}
		if strings.HasPrefix(name, "refs/heads/pr/") {
			return nil, errors.Errorf("malformed event: repo state carries forbidden ref %q", name)
		}
		s.Refs[name] = value
	}
	return s, nil
}

func isRecognizedRefName(name string) bool {
	return name == "HEAD" || strings.HasPrefix(name, "refs/heads/") || strings.HasPrefix(name, "refs/tags/")
}

// NewestState picks the RepoState event with the largest created_at
// from a set of candidate events.
func NewestState(events []*nostr.Event) *nostr.Event {
	var newest *nostr.Event
	for _, e := range events {
		if e.Kind != KindRepoState {
			continue
		}
		if newest == nil || e.CreatedAt > newest.CreatedAt {
			newest = e
		}
	}
	return newest
}
