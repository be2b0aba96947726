// Package helper implements the line-oriented git remote-helper
// protocol driver that owns the session, dispatching
// capabilities/list/fetch/push against the rest of the core.
package helper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/pkgs/queue"
	"github.com/nostrsync/ngit/remote/divergence"
	"github.com/nostrsync/ngit/remote/eventbus"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/nostrsync/ngit/remote/objectstore"
	"github.com/nostrsync/ngit/remote/proposal"
	"github.com/nostrsync/ngit/remote/publisher"
	"github.com/nostrsync/ngit/remote/refstate"
	"github.com/nostrsync/ngit/remote/resolver"
	"github.com/nostrsync/ngit/remote/signer"
	"github.com/nostrsync/ngit/remote/transport"
)

// Loop drives the protocol against the rest of the core. It is
// strictly serial: one request, one response batch, at a time.
type Loop struct {
	In     *bufio.Reader
	Out    io.Writer
	Errout io.Writer

	Store     *objectstore.Store
	Bus       *eventbus.Bus
	Mux       *transport.Multiplexer
	Signer    signer.Signer
	Resolved  *resolver.ResolvedRepo
	Mirrors   []transport.MirrorTarget
	LocalUser string // locally-authenticated pubkey, "" if not logged in

	// lastListing carries the last `list` output across to a
	// subsequent `push` so the push can diff against it without a
	// second round trip.
	lastListing map[string]string
	verbosity   int
}

// Run services requests from In until EOF or a fatal error, returning
// the process exit code.
func (l *Loop) Run(ctx context.Context) int {
	for {
		line, err := l.In.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if err == io.EOF && line == "" {
			return 0
		}
		if err != nil && err != io.EOF {
			l.fatal(err)
			return 1
		}

		switch {
		case line == "capabilities":
			fmt.Fprint(l.Out, "option\npush\nfetch\n\n")

		case strings.HasPrefix(line, "option "):
			l.handleOption(line)

		case line == "list" || line == "list for-push":
			forPush := line == "list for-push"
			if err := l.handleList(ctx, forPush); err != nil {
				l.fatal(err)
				return 1
			}

		case strings.HasPrefix(line, "fetch "):
			batch := l.readBatch(line, "fetch ")
			l.handleFetch(ctx, batch)

		case strings.HasPrefix(line, "push "):
			batch := l.readBatch(line, "push ")
			l.handlePush(ctx, batch)

		case line == "":
			continue

		default:
			l.fatal(fmt.Errorf("unknown command %q", line))
			return 1
		}

		if err == io.EOF {
			return 0
		}
	}
}

func (l *Loop) fatal(err error) {
	fmt.Fprintf(l.Errout, "Error: %s\n", err)
}

func (l *Loop) handleOption(line string) {
	rest := strings.TrimPrefix(line, "option ")
	if strings.HasPrefix(rest, "verbosity") {
		if fields := strings.Fields(rest); len(fields) == 2 {
			if v, err := strconv.Atoi(fields[1]); err == nil {
				l.verbosity = v
			}
		}
		fmt.Fprintln(l.Out, "ok")
		return
	}
	fmt.Fprintln(l.Out, "unsupported")
}

// readBatch collects consecutive lines of the same command (fetch or
// push) until a blank line, so one response batch covers them all.
func (l *Loop) readBatch(first, prefix string) []string {
	batch := []string{strings.TrimPrefix(first, prefix)}
	for {
		line, err := l.In.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if line == "" || err != nil {
			break
		}
		batch = append(batch, strings.TrimPrefix(line, prefix))
	}
	return batch
}

// handleList implements `list`/`list for-push`: combines the
// authoritative ref-state with materialized proposal branches, and
// emits divergence warnings to stderr.
func (l *Loop) handleList(ctx context.Context, forPush bool) error {
	refs := map[string]string{}
	if l.Resolved.AuthoritativeState != nil {
		for _, name := range l.Resolved.AuthoritativeState.Names() {
			oid, _ := l.Resolved.AuthoritativeState.Get(name)
			refs[name] = oid
		}
	} else if len(l.Mirrors) > 0 {
		listing, _, err := l.Mux.List(ctx, l.Mirrors[0])
		if err == nil {
			refs = listing
		}
	}
	l.lastListing = refs

	var mirrorListings []map[string]string
	if l.Resolved.AuthoritativeState != nil {
		for _, m := range l.Mirrors {
			listing, _, err := l.Mux.List(ctx, m)
			if err != nil {
				continue
			}
			mirrorListings = append(mirrorListings, listing)
			for _, rep := range divergence.CompareAll(l.Store, m.URL, refs, listing) {
				fmt.Fprintln(l.Errout, rep.Message())
			}
		}
	}

	for name, oid := range l.materializeProposalRefs(ctx, mirrorListings) {
		refs[name] = oid
	}

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val := refs[name]
		if strings.HasPrefix(val, "ref: ") {
			// git rejects symref advertisements on the for-push
			// listing; push destinations must be concrete refs.
			if forPush {
				continue
			}
			fmt.Fprintf(l.Out, "@%s %s\n", strings.TrimPrefix(val, "ref: "), name)
		} else {
			fmt.Fprintf(l.Out, "%s %s\n", val, name)
		}
	}
	fmt.Fprint(l.Out, "\n")
	return nil
}

// fetchOid adapts a plain oid string to queue.Item so repeated oids in
// a fetch batch (git sometimes asks for the same oid once per ref that
// points at it) collapse to one fetch attempt.
type fetchOid string

func (o fetchOid) GetID() interface{} { return string(o) }

// handleFetch implements batched `fetch`, trying mirrors in order
// until each requested oid is present locally. Requested oids are
// deduplicated through a UniqueQueue so two refs pointing at the same
// tip cost one fetch.
func (l *Loop) handleFetch(ctx context.Context, batch []string) {
	pending := queue.NewUnique()
	for _, line := range batch {
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		pending.Append(fetchOid(fields[0]))
	}

	for !pending.Empty() {
		oid := string(pending.Head().(fetchOid))
		if l.Store.CommitExists(oid) {
			continue
		}
		fetched := false
		for _, m := range l.Mirrors {
			res, err := l.Mux.Fetch(ctx, m, oid)
			l.reportFetchAttempts(m, res, err)
			if err != nil {
				continue
			}
			fetched = true
			break
		}
		if !fetched {
			fmt.Fprintf(l.Errout, "fetch: all mirrors failed for %s\n", oid)
		}
	}
	fmt.Fprint(l.Out, "\n")
}

// reportFetchAttempts writes the per-transport trace for one mirror's
// fetch. Grasp servers get a single line instead of the full trace;
// they are expected to always succeed and the helper owns them.
func (l *Loop) reportFetchAttempts(m transport.MirrorTarget, res *transport.Result, err error) {
	if res == nil {
		return
	}
	if res.GraspServer {
		if err != nil {
			fmt.Fprintf(l.Errout, "fetch: %s failed: %v\n", m.URL, err)
		} else if l.verbosity > 1 {
			fmt.Fprintf(l.Errout, "fetch: %s ok\n", m.URL)
		}
		return
	}
	for _, a := range res.Attempted {
		fmt.Fprintf(l.Errout, "fetch: %s failed over %s: %v\n", m.URL, a.Transport, a.Err)
	}
	if err == nil {
		fmt.Fprintf(l.Errout, "fetch: succeeded over %s from %s\n", res.Succeeded, m.URL)
	}
}

// handlePush implements batched `push` by delegating to the Publisher.
func (l *Loop) handlePush(ctx context.Context, batch []string) {
	var refspecs []publisher.Refspec
	for _, raw := range batch {
		rs, err := publisher.ParseRefspec(raw)
		if err != nil {
			fmt.Fprintf(l.Out, "error %s %s\n", raw, err)
			continue
		}
		refspecs = append(refspecs, rs)
	}
	if len(refspecs) == 0 {
		fmt.Fprint(l.Out, "\n")
		return
	}

	prev := l.Resolved.AuthoritativeState
	if prev == nil {
		empty, _ := refstate.New(map[string]string{})
		prev = empty
	}

	results, err := publisher.Publish(ctx, l.Store, l.Mux, l.Bus, l.Signer, l.Mirrors, prev, l.Resolved.Identifier, l.Resolved.Relays, refspecs)
	if err != nil {
		fmt.Fprintf(l.Errout, "push: %v\n", err)
	}
	for _, r := range results {
		if r.OK {
			fmt.Fprintf(l.Out, "ok %s\n", r.Dst)
		} else {
			fmt.Fprintf(l.Out, "error %s %s\n", r.Dst, r.Msg)
		}
	}
	fmt.Fprint(l.Out, "\n")
}

// materializeProposalRefs fetches patch/pull-request/status events for
// this repo from the resolved relays and runs them through the
// Proposal Materializer, returning synthetic refs/heads/pr/* entries
// for every proposal that resolved successfully. A single proposal's
// failure is reported to stderr and otherwise ignored.
func (l *Loop) materializeProposalRefs(ctx context.Context, mirrorListings []map[string]string) map[string]string {
	kinds := append([]int{nostrevent.KindPullRequest, nostrevent.KindPullRequestUpdate, nostrevent.KindPatch}, nostrevent.StatusKinds()...)
	filter := nostr.Filter{Kinds: kinds, Tags: nostr.TagMap{"d": {l.Resolved.Identifier}}}

	var events []*nostr.Event
	for _, relayURL := range l.Resolved.Relays {
		fetchCtx, cancel := context.WithTimeout(ctx, eventbus.DefaultFetchTimeout)
		found, err := l.Bus.Fetch(fetchCtx, relayURL, filter)
		cancel()
		if err != nil {
			continue
		}
		events = append(events, found...)
	}

	roots := proposal.GroupRoots(events)
	rootCreatedAt := map[string]nostr.Timestamp{}
	for id, root := range roots {
		for _, p := range root.Patches {
			if p.Event.CreatedAt < rootCreatedAt[id] || rootCreatedAt[id] == 0 {
				rootCreatedAt[id] = p.Event.CreatedAt
			}
		}
	}

	mirrorKnownTips := map[string]bool{}
	for _, listing := range mirrorListings {
		for _, oid := range listing {
			mirrorKnownTips[oid] = true
		}
	}

	materialized, failures := proposal.MaterializeAll(l.Store, roots, rootCreatedAt, l.LocalUser, mirrorKnownTips)
	for _, f := range failures {
		fmt.Fprintln(l.Errout, f.Error())
	}

	out := map[string]string{}
	for _, m := range materialized {
		out["refs/heads/"+m.BranchName] = m.TipOid
	}
	return out
}
