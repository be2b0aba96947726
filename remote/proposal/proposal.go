// Package proposal turns open change-proposals into real local
// branches, either by trusting a pull-request event's tip or by
// replaying the proposal's patch chain onto its parent commit.
package proposal

import (
	"fmt"
	"sort"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/nostrsync/ngit/remote/objectstore"
	"github.com/pkg/errors"
)

// Materialized is a single (branch-name, tip-oid) pair produced for an
// open proposal.
type Materialized struct {
	BranchName string
	TipOid     string
}

// Failure records a proposal that could not be materialized. A single
// proposal's failure is reported and skipped, never fatal.
type Failure struct {
	BranchName string
	Reason     string
}

func (f Failure) Error() string {
	return fmt.Sprintf("failed to fetch branch `%s` error: %s", f.BranchName, f.Reason)
}

// Root groups every event belonging to one proposal: patches, any
// pull-request/update events, and status events.
type Root struct {
	ID      string
	Author  string
	Patches []*nostrevent.Patch
	Status  []*nostrevent.Status
}

// GroupRoots partitions a flat event list into proposal roots keyed by
// root event id.
func GroupRoots(events []*nostr.Event) map[string]*Root {
	roots := map[string]*Root{}
	for _, e := range events {
		switch e.Kind {
		case nostrevent.KindPatch, nostrevent.KindPullRequest, nostrevent.KindPullRequestUpdate:
			p, err := nostrevent.ParsePatch(e)
			if err != nil || p.Root == "" {
				continue
			}
			r := roots[p.Root]
			if r == nil {
				r = &Root{ID: p.Root, Author: e.PubKey}
				roots[p.Root] = r
			}
			r.Patches = append(r.Patches, p)
		default:
			for _, k := range nostrevent.StatusKinds() {
				if e.Kind == k {
					s, err := nostrevent.ParseStatus(e)
					if err != nil || s.Root == "" {
						continue
					}
					r := roots[s.Root]
					if r == nil {
						r = &Root{ID: s.Root}
						roots[s.Root] = r
					}
					r.Status = append(r.Status, s)
					break
				}
			}
		}
	}
	return roots
}

// IsOpen reports whether the proposal is still open: no status event
// targets the root with a greater timestamp than the root itself, or
// the winning status (newest created_at wins) is open or draft.
func (r *Root) IsOpen(rootCreatedAt nostr.Timestamp) bool {
	if len(r.Status) == 0 {
		return true
	}
	sorted := append([]*nostrevent.Status{}, r.Status...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Event.CreatedAt > sorted[j].Event.CreatedAt
	})
	winner := sorted[0]
	if winner.Event.CreatedAt <= rootCreatedAt {
		return true
	}
	return winner.IsOpen()
}

// Tip selects the patch chain's tip: among patches with the maximum
// created_at, the one whose Commit is not any sibling's ParentCommit.
func (r *Root) Tip() *nostrevent.Patch {
	if len(r.Patches) == 0 {
		return nil
	}
	maxCreated := r.Patches[0].Event.CreatedAt
	for _, p := range r.Patches {
		if p.Event.CreatedAt > maxCreated {
			maxCreated = p.Event.CreatedAt
		}
	}
	parentSet := map[string]bool{}
	for _, p := range r.Patches {
		if p.ParentCommit != "" {
			parentSet[p.ParentCommit] = true
		}
	}
	for _, p := range r.Patches {
		if p.Event.CreatedAt == maxCreated && !parentSet[p.Commit] {
			return p
		}
	}
	return r.Patches[len(r.Patches)-1]
}

// OrderedChain sorts patches by walking the DAG from root (no parent,
// or parent not in this set) to tip, following ParentCommit -> Commit
// links.
func (r *Root) OrderedChain() []*nostrevent.Patch {
	byCommit := map[string]*nostrevent.Patch{}
	for _, p := range r.Patches {
		byCommit[p.Commit] = p
	}
	tip := r.Tip()
	if tip == nil {
		return nil
	}
	var chain []*nostrevent.Patch
	cur := tip
	seen := map[string]bool{}
	for cur != nil && !seen[cur.Commit] {
		seen[cur.Commit] = true
		chain = append([]*nostrevent.Patch{cur}, chain...)
		if cur.ParentCommit == "" {
			break
		}
		cur = byCommit[cur.ParentCommit]
	}
	return chain
}

// BranchName derives the ref name under refs/heads/pr/ for a
// proposal. Proposals by the locally-authenticated user keep a short
// name; everyone else's are namespaced by a short author id so two
// proposals never collide.
func BranchName(root *Root, name string, localAuthenticatedPubkey string) string {
	if localAuthenticatedPubkey != "" && root.Author == localAuthenticatedPubkey {
		return "pr/" + name
	}
	return "pr/" + shortAuthorID(root.Author) + "/" + name
}

func shortAuthorID(pubkey string) string {
	if len(pubkey) <= 8 {
		return pubkey
	}
	return pubkey[:8]
}

// Materialize produces the (branch, tip) pair for a single proposal
// root. mirrorKnownTips is the set of oids known to at least one
// mirror's listing; a pull-request tip absent from it is suppressed,
// since a clone against the synthesized list would otherwise fail.
// localAuthenticatedPubkey may be "" if not logged in.
func Materialize(store *objectstore.Store, root *Root, name, localAuthenticatedPubkey string, mirrorKnownTips map[string]bool) (*Materialized, error) {
	branch := BranchName(root, name, localAuthenticatedPubkey)

	tip := root.Tip()
	if tip != nil && tip.IsPullRequest {
		if mirrorKnownTips[tip.Commit] {
			return &Materialized{BranchName: branch, TipOid: tip.Commit}, nil
		}
		return nil, Failure{BranchName: branch, Reason: "pull request tip not known to any mirror"}
	}

	chain := root.OrderedChain()
	if len(chain) == 0 {
		return nil, Failure{BranchName: branch, Reason: "no patches found for proposal"}
	}

	first := chain[0]
	if first.ParentCommit != "" && !store.CommitExists(first.ParentCommit) {
		return nil, Failure{BranchName: branch, Reason: "parent commit not found locally"}
	}

	patches := make([][]byte, 0, len(chain))
	authors := make([]objectstore.PatchAuthor, 0, len(chain))
	for _, p := range chain {
		patches = append(patches, []byte(p.Content))
		meta, err := ParseMboxPatch(p.Content)
		if err != nil {
			return nil, Failure{BranchName: branch, Reason: errors.Wrap(err, "failed to parse patch metadata").Error()}
		}
		authors = append(authors, objectstore.PatchAuthor{
			Name:          meta.AuthorName,
			Email:         meta.AuthorEmail,
			TimestampUnix: meta.AuthorTimestamp,
			OffsetMinutes: meta.AuthorOffsetMinutes,
		})
	}

	tipOid, err := store.ApplyPatchChain(branch, patches, authors)
	if err != nil {
		return nil, Failure{BranchName: branch, Reason: err.Error()}
	}

	wantTip := chain[len(chain)-1].Commit
	if tipOid != wantTip {
		return nil, Failure{BranchName: branch, Reason: errors.Errorf(
			"replayed tip %s does not match expected commit %s", tipOid, wantTip).Error()}
	}

	return &Materialized{BranchName: branch, TipOid: tipOid}, nil
}

// MaterializeAll runs Materialize over every open root, collecting
// successes and reporting (never failing the whole run on) failures.
func MaterializeAll(store *objectstore.Store, roots map[string]*Root, rootCreatedAt map[string]nostr.Timestamp, localAuthenticatedPubkey string, mirrorKnownTips map[string]bool) ([]*Materialized, []Failure) {
	var ok []*Materialized
	var failed []Failure
	for id, root := range roots {
		if !root.IsOpen(rootCreatedAt[id]) {
			continue
		}
		name := shortAuthorID(id)
		m, err := Materialize(store, root, name, localAuthenticatedPubkey, mirrorKnownTips)
		if err != nil {
			if f, is := err.(Failure); is {
				failed = append(failed, f)
				continue
			}
			failed = append(failed, Failure{BranchName: name, Reason: err.Error()})
			continue
		}
		ok = append(ok, m)
	}
	return ok, failed
}
