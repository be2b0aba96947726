// Package resolver turns a decentralized repo URL into a ResolvedRepo
// by fetching and merging maintainer announcements and the latest
// ref-state event. Fan-out across relays is bounded with
// golang.org/x/sync/errgroup and golang.org/x/sync/semaphore.
package resolver

import (
	"context"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/eventbus"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/nostrsync/ngit/remote/refstate"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// MaxRelayFanout bounds how many relays are queried concurrently.
const MaxRelayFanout = 15

// ErrNotAnnounced is returned when no announcement from the trusted
// maintainer can be found on any relay.
var ErrNotAnnounced = errors.New("repository is not announced by the trusted maintainer")

// ResolvedRepo is the resolver's output. It is built once per helper
// invocation and never mutated afterwards.
type ResolvedRepo struct {
	Identifier         string
	TrustedMaintainer  string
	Maintainers        []string
	Mirrors            []string
	Relays             []string
	RootCommit         string
	AuthoritativeState *refstate.RefState // nil if no ref-state event exists
}

// DefaultRelays is consulted when a caller has no better-known relay
// set yet (e.g. before any announcement has been resolved).
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
}

// Resolve fetches the trusted maintainer's announcement, follows its
// co-maintainer list, merges the announcement set, and attaches the
// newest ref-state event if one exists.
func Resolve(ctx context.Context, bus *eventbus.Bus, relays []string, trustedPubkey, identifier string) (*ResolvedRepo, error) {
	if len(relays) == 0 {
		relays = DefaultRelays
	}

	trustedAnn, err := fetchAnnouncement(ctx, bus, relays, trustedPubkey, identifier)
	if err != nil {
		return nil, err
	}
	if trustedAnn == nil {
		return nil, ErrNotAnnounced
	}

	coMaintainers := map[string]*nostrevent.Announcement{}
	visited := map[string]bool{trustedPubkey: true}
	for _, pk := range trustedAnn.CoMaintainers {
		if visited[pk] {
			continue // co-maintainer graphs may be cyclic
		}
		visited[pk] = true
		ann, err := fetchAnnouncement(ctx, bus, relays, pk, identifier)
		if err != nil || ann == nil {
			continue // "ignore those not issued"
		}
		coMaintainers[pk] = ann
	}

	maintainers, mirrors, relaySet, _ := nostrevent.MergeAnnouncements(trustedAnn, coMaintainers)

	state, err := fetchAuthoritativeState(ctx, bus, relays, trustedPubkey, identifier)
	if err != nil {
		return nil, err
	}

	rr := &ResolvedRepo{
		Identifier:         identifier,
		TrustedMaintainer:  trustedPubkey,
		Maintainers:        maintainers,
		Mirrors:            mirrors,
		Relays:             relaySet,
		RootCommit:         trustedAnn.RootCommit,
		AuthoritativeState: state,
	}
	if err := validate(rr); err != nil {
		return nil, err
	}
	return rr, nil
}

func validate(rr *ResolvedRepo) error {
	if rr.AuthoritativeState != nil && rr.RootCommit == "" {
		return errors.New("resolved repo has authoritative state but no root commit")
	}
	if rr.AuthoritativeState != nil {
		for _, name := range rr.AuthoritativeState.Names() {
			if hasForbiddenPrefix(name) {
				return errors.Errorf("authoritative state carries forbidden ref %q", name)
			}
		}
	}
	return nil
}

func hasForbiddenPrefix(name string) bool {
	const prefix = "refs/heads/pr/"
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

// fetchAnnouncement fans out a RepoAnnouncement filter across relays
// and returns the newest matching event, parsed.
func fetchAnnouncement(ctx context.Context, bus *eventbus.Bus, relays []string, pubkey, identifier string) (*nostrevent.Announcement, error) {
	events, err := fanOutFetch(ctx, bus, relays, nostr.Filter{
		Kinds:   []int{nostrevent.KindRepoAnnouncement},
		Authors: []string{pubkey},
		Tags:    nostr.TagMap{"d": {identifier}},
	})
	if err != nil {
		return nil, err
	}
	var newest *nostr.Event
	for _, e := range events {
		if newest == nil || e.CreatedAt > newest.CreatedAt {
			newest = e
		}
	}
	if newest == nil {
		return nil, nil
	}
	return nostrevent.ParseAnnouncement(newest)
}

func fetchAuthoritativeState(ctx context.Context, bus *eventbus.Bus, relays []string, pubkey, identifier string) (*refstate.RefState, error) {
	events, err := fanOutFetch(ctx, bus, relays, nostr.Filter{
		Kinds:   []int{nostrevent.KindRepoState},
		Authors: []string{pubkey},
		Tags:    nostr.TagMap{"d": {identifier}},
	})
	if err != nil {
		return nil, err
	}
	newest := nostrevent.NewestState(events)
	if newest == nil {
		return nil, nil // NoAuthoritativeState: not fatal
	}
	return refstate.FromEvent(newest)
}

// fanOutFetch queries every relay concurrently, bounded by
// MaxRelayFanout in-flight at a time. Individual relay failures and
// timeouts are tolerated; whatever the remaining relays returned
// stands as a partial result.
func fanOutFetch(ctx context.Context, bus *eventbus.Bus, relays []string, filter nostr.Filter) ([]*nostr.Event, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, eventbus.DefaultFetchTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(MaxRelayFanout)
	g, gctx := errgroup.WithContext(fetchCtx)

	var mu sync.Mutex
	var all []*nostr.Event

	for _, relayURL := range relays {
		relayURL := relayURL
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			events, err := bus.Fetch(gctx, relayURL, filter)
			if err != nil {
				return nil // per-relay timeout/failure is non-fatal; partial results stand
			}
			mu.Lock()
			all = append(all, events...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return dedupByID(all), nil
}

func dedupByID(events []*nostr.Event) []*nostr.Event {
	seen := map[string]bool{}
	var out []*nostr.Event
	for _, e := range events {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}
