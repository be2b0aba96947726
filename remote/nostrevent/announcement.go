package nostrevent

import (
	"sort"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/urlnorm"
	"github.com/pkg/errors"
)

// Announcement is the typed form of a RepoAnnouncement event: the
// maintainer's signed declaration of the repo's metadata, mirror list,
// relay list, and recognized co-maintainers.
type Announcement struct {
	Event         *nostr.Event
	Identifier    string
	Name          string
	Description   string
	Web           string
	RootCommit    string
	Mirrors       []string
	Relays        []string
	CoMaintainers []string
	Hashtags      []string
}

// ParseAnnouncement builds an Announcement from a raw event, failing if
// the event is not a RepoAnnouncement or is missing its "d" (identifier)
// tag.
func ParseAnnouncement(e *nostr.Event) (*Announcement, error) {
	if e.Kind != KindRepoAnnouncement {
		return nil, errors.Errorf("event kind %d is not a repo announcement", e.Kind)
	}
	id, ok := TagValue(e, "d")
	if !ok || id == "" {
		return nil, errors.New("malformed event: repo announcement missing d tag")
	}

	a := &Announcement{Event: e, Identifier: id}
	if v, ok := TagValue(e, "name"); ok {
		a.Name = v
	}
	if v, ok := TagValue(e, "description"); ok {
		a.Description = v
	}
	if v, ok := TagValue(e, "web"); ok {
		a.Web = v
	}
	a.Mirrors = TagValues(e, "clone")
	a.Relays = TagValues(e, "relays")
	a.Hashtags = TagValues(e, "t")
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "maintainers" {
			a.CoMaintainers = append(a.CoMaintainers, t[1:]...)
		}
		if len(t) >= 2 && t[0] == "p" {
			a.CoMaintainers = append(a.CoMaintainers, t[1])
		}
	}
	if v, ok := TagValue(e, "r"); ok && a.RootCommit == "" {
		a.RootCommit = v
	}
	// earliest-unique-commit tag ("r", "euc") takes priority over a bare "r" tag.
	for _, t := range e.Tags {
		if len(t) >= 3 && t[0] == "r" && t[2] == "euc" {
			a.RootCommit = t[1]
		}
	}
	return a, nil
}

// MergeAnnouncements merges the trusted maintainer's announcement with
// the announcements of the co-maintainers it recognizes: maintainers
// is the union, mirrors are concatenated with the trusted maintainer
// first and duplicates removed, relays are a plain union, and
// descriptive fields come from whichever announcement has the largest
// created_at (ties broken by pubkey hex order).
func MergeAnnouncements(trusted *Announcement, coMaintainer map[string]*Announcement) (
	maintainers []string, mirrors []string, relays []string, descriptive *Announcement,
) {
	maintainers = append(maintainers, trusted.Event.PubKey)
	mirrors = urlnorm.DedupURLs(trusted.Mirrors)
	relaySet := map[string]bool{}
	for _, r := range urlnorm.DedupURLs(trusted.Relays) {
		relaySet[r] = true
	}

	descriptive = trusted
	var coPubkeys []string
	for pk := range coMaintainer {
		coPubkeys = append(coPubkeys, pk)
	}
	sort.Strings(coPubkeys)

	for _, pk := range coPubkeys {
		ann := coMaintainer[pk]
		maintainers = append(maintainers, pk)
		for _, m := range urlnorm.DedupURLs(ann.Mirrors) {
			if !urlnorm.ContainsURL(mirrors, m) {
				mirrors = append(mirrors, m)
			}
		}
		for _, r := range urlnorm.DedupURLs(ann.Relays) {
			relaySet[r] = true
		}
		if ann.Event.CreatedAt > descriptive.Event.CreatedAt ||
			(ann.Event.CreatedAt == descriptive.Event.CreatedAt && ann.Event.PubKey < descriptive.Event.PubKey) {
			descriptive = ann
		}
	}

	for r := range relaySet {
		relays = append(relays, r)
	}
	sort.Strings(relays)
	return maintainers, mirrors, relays, descriptive
}
