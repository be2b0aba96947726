// Package divergence compares the authoritative ref state to each
// mirror's listing, computing per-ref ahead/behind and formatting the
// warning lines the helper prints to stderr.
package divergence

import (
	"fmt"

	"github.com/nostrsync/ngit/remote/objectstore"
)

// Status is the outcome of comparing one ref on one mirror to the
// authoritative state.
type Status int

const (
	Matches Status = iota
	Missing
	Ahead
	OutOfSync
)

// Report is one formatted divergence finding, or a silent Matches.
type Report struct {
	Mirror string
	Ref    string
	Status Status
	Ahead  int
	Behind int
}

// Message renders the warning line for a Report, or "" if Status is
// Matches (a mirror in agreement stays silent).
func (r Report) Message() string {
	switch r.Status {
	case Matches:
		return ""
	case Missing:
		return fmt.Sprintf("WARNING: %s %s is missing but tracked on nostr", r.Mirror, r.Ref)
	case Ahead:
		return fmt.Sprintf("WARNING: %s %s is %d ahead %d behind nostr", r.Mirror, r.Ref, r.Ahead, r.Behind)
	case OutOfSync:
		return fmt.Sprintf("WARNING: %s %s is out of sync with nostr", r.Mirror, r.Ref)
	default:
		return ""
	}
}

// Compare evaluates a single ref against a single mirror's listing,
// using the object store's ahead/behind graph walk. A walk failure
// (missing commit) degrades to OutOfSync.
func Compare(store *objectstore.Store, mirror, ref, authoritativeOid string, mirrorListing map[string]string) Report {
	mirrorOid, present := mirrorListing[ref]
	if !present {
		return Report{Mirror: mirror, Ref: ref, Status: Missing}
	}
	if mirrorOid == authoritativeOid {
		return Report{Mirror: mirror, Ref: ref, Status: Matches}
	}

	ahead, behind, err := store.CommitsAheadBehind(mirrorOid, authoritativeOid)
	if err != nil {
		return Report{Mirror: mirror, Ref: ref, Status: OutOfSync}
	}
	if ahead == 0 && behind == 0 {
		return Report{Mirror: mirror, Ref: ref, Status: OutOfSync}
	}
	return Report{Mirror: mirror, Ref: ref, Status: Ahead, Ahead: ahead, Behind: behind}
}

// CompareAll evaluates every ref in authoritativeState against a
// single mirror's listing, returning only non-silent reports.
func CompareAll(store *objectstore.Store, mirror string, authoritativeState map[string]string, mirrorListing map[string]string) []Report {
	var reports []Report
	for ref, oid := range authoritativeState {
		r := Compare(store, mirror, ref, oid, mirrorListing)
		if r.Status != Matches {
			reports = append(reports, r)
		}
	}
	return reports
}
