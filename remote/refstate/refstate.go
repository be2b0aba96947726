// Package refstate holds the authoritative ref-name to oid map
// together with the signed event it was extracted from, immutable
// after construction. It is deliberately inert: it holds data and
// answers read-only questions about it, and offers a constructor back
// to a signable event for the publisher. It does not talk to the
// event bus or the object store.
package refstate

import (
	"sort"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/pkg/errors"
)

// RefState is an immutable ref-name -> value map plus the event it was
// parsed from (nil if constructed locally by the Publisher before
// signing). Values are either a 40-hex oid or "ref: <other-ref>".
type RefState struct {
	event *nostr.Event
	refs  map[string]string
}

// ErrForbiddenRef is returned by New when the caller attempts to
// construct a RefState containing a refs/heads/pr/* entry; those names
// are reserved for materialized proposal branches.
var ErrForbiddenRef = errors.New("refs/heads/pr/* must not appear in a ref-state")

// New builds a RefState from a plain map, validating the
// refs/heads/pr/* invariant. The returned value copies refs so the
// caller's map can be mutated afterward without affecting the result.
func New(refs map[string]string) (*RefState, error) {
	copied := make(map[string]string, len(refs))
	for k, v := range refs {
		if strings.HasPrefix(k, "refs/heads/pr/") {
			return nil, ErrForbiddenRef
		}
		copied[k] = v
	}
	return &RefState{refs: copied}, nil
}

// FromEvent builds a RefState from a signed RepoState event.
func FromEvent(e *nostr.Event) (*RefState, error) {
	parsed, err := nostrevent.ParseState(e)
	if err != nil {
		return nil, err
	}
	return &RefState{event: e, refs: parsed.Refs}, nil
}

// Event returns the signed event this state was read from, or nil if
// it was constructed locally and not yet published.
func (s *RefState) Event() *nostr.Event { return s.event }

// Get returns the raw value stored for name (either an oid or a
// "ref: ..." symref), and whether it was present.
func (s *RefState) Get(name string) (string, bool) {
	v, ok := s.refs[name]
	return v, ok
}

// Resolve follows symref indirection starting at name, returning the
// final oid. When a symref (e.g. HEAD) and an explicit entry disagree,
// the explicit entry wins: the lookup always consults the target ref's
// own entry rather than any value embedded alongside the symref.
func (s *RefState) Resolve(name string) (oid string, ok bool) {
	seen := map[string]bool{}
	cur := name
	for {
		if seen[cur] {
			return "", false // symref cycle
		}
		seen[cur] = true
		v, present := s.refs[cur]
		if !present {
			return "", false
		}
		if !strings.HasPrefix(v, "ref: ") {
			return v, true
		}
		cur = strings.TrimPrefix(v, "ref: ")
	}
}

// Names returns every ref name in the state, sorted for stable output.
func (s *RefState) Names() []string {
	names := make([]string, 0, len(s.refs))
	for k := range s.refs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of refs tracked.
func (s *RefState) Len() int { return len(s.refs) }

// Merge returns a new RefState equal to s with every (name, value) in
// overlay applied on top. Used by the Publisher to compute the
// intended post-push state: overlay is the refs touched by the current
// push batch, s is the previous authoritative state.
func (s *RefState) Merge(overlay map[string]string) (*RefState, error) {
	merged := make(map[string]string, len(s.refs)+len(overlay))
	if s != nil {
		for k, v := range s.refs {
			merged[k] = v
		}
	}
	for k, v := range overlay {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return New(merged)
}

// Tags converts the ref map into nostr event tags in a stable order,
// suitable for building an unsigned RepoState event.
func (s *RefState) Tags() nostr.Tags {
	names := s.Names()
	tags := make(nostr.Tags, 0, len(names))
	for _, name := range names {
		tags = append(tags, nostr.Tag{name, s.refs[name]})
	}
	return tags
}

// Equal reports whether two states carry identical ref maps.
func (s *RefState) Equal(other *RefState) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.refs) != len(other.refs) {
		return false
	}
	for k, v := range s.refs {
		if ov, ok := other.refs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
