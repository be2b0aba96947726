package nostrevent

import (
	"github.com/nbd-wtf/go-nostr"
	"github.com/pkg/errors"
)

// Patch is the typed form of a single patch event in a proposal chain
// (kind=Patch) or the tip-bearing form of a pull-request/pull-request
// update event (kind=PullRequest/PullRequestUpdate). Author identity
// lives in the mbox-formatted Content, not in tags; the materializer
// extracts it there when replaying the chain.
type Patch struct {
	Event         *nostr.Event
	Root          string // the proposal root event id this patch belongs to
	Commit        string // the "c" tag: resulting commit hash
	ParentCommit  string // the "parent-commit" tag, "" for the chain's first patch
	Content       string // raw diff / mbox body
	IsPullRequest bool   // true for PullRequest/PullRequestUpdate kinds
}

// ParsePatch builds a Patch from a raw event of kind Patch,
// PullRequest, or PullRequestUpdate.
func ParsePatch(e *nostr.Event) (*Patch, error) {
	switch e.Kind {
	case KindPatch, KindPullRequest, KindPullRequestUpdate:
	default:
		return nil, errors.Errorf("event kind %d is not a patch or pull-request event", e.Kind)
	}

	p := &Patch{Event: e, Content: e.Content, IsPullRequest: e.Kind != KindPatch}

	if v, ok := TagValue(e, "e"); ok {
		p.Root = v
	}
	if v, ok := TagValue(e, "root"); ok {
		p.Root = v
	}
	commit, ok := TagValue(e, "c")
	if !ok || commit == "" {
		return nil, errors.New("malformed event: patch missing required c tag")
	}
	p.Commit = commit
	if v, ok := TagValue(e, "parent-commit"); ok {
		p.ParentCommit = v
	}
	return p, nil
}

// Status is the typed form of a proposal status event (open/applied/
// closed/draft).
type Status struct {
	Event *nostr.Event
	Root  string
	Kind  int
}

// ParseStatus builds a Status from a raw status event.
func ParseStatus(e *nostr.Event) (*Status, error) {
	found := false
	for _, k := range StatusKinds() {
		if e.Kind == k {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Errorf("event kind %d is not a proposal status", e.Kind)
	}
	s := &Status{Event: e, Kind: e.Kind}
	if v, ok := TagValue(e, "e"); ok {
		s.Root = v
	}
	if v, ok := TagValue(e, "root"); ok {
		s.Root = v
	}
	return s, nil
}

// IsOpen reports whether this status keeps its proposal open: only
// KindStatusOpen and KindStatusDraft do.
func (s *Status) IsOpen() bool {
	return s.Kind == KindStatusOpen || s.Kind == KindStatusDraft
}
