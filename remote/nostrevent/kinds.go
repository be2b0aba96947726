// Package nostrevent gives a typed face to the otherwise-opaque signed
// events the core receives from the event bus. Each kind of event this
// system cares about gets its own parser (RepoAnnouncement, RepoState,
// a patch/proposal event, ...); unknown tags on a recognized event are
// preserved on the raw nostr.Event but otherwise ignored.
package nostrevent

import "github.com/nbd-wtf/go-nostr"

// Kind numbers this system recognizes, matching the NIP-34 "git stuff
// on nostr" kind range.
const (
	KindRepoAnnouncement  = 30617
	KindRepoState         = 30618
	KindPatch             = 1617
	KindPullRequest       = 1621
	KindPullRequestUpdate = 1622
	KindStatusOpen        = 1630
	KindStatusApplied     = 1631
	KindStatusClosed      = 1632
	KindStatusDraft       = 1633
)

// StatusKinds returns the kinds that can change a proposal's
// open/draft status. Among competing status events, the one with the
// largest created_at wins.
func StatusKinds() []int {
	return []int{KindStatusOpen, KindStatusApplied, KindStatusClosed, KindStatusDraft}
}

// TagValue returns the second element of the first tag whose first
// element equals key, or "" if no such tag exists.
func TagValue(e *nostr.Event, key string) (string, bool) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == key {
			return t[1], true
		}
	}
	return "", false
}

// TagValues returns the second element of every tag whose first element
// equals key, in event order.
func TagValues(e *nostr.Event, key string) []string {
	var out []string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == key {
			out = append(out, t[1])
		}
	}
	return out
}

// IsReplaceableCoordinate reports whether kind is in the replaceable
// parameterized-replaceable range this system relies on for
// RepoAnnouncement/RepoState "largest created_at wins" semantics.
func IsReplaceableCoordinate(kind int) bool {
	return kind == KindRepoAnnouncement || kind == KindRepoState
}
