// Package publisher executes a batch of push refspecs against every
// mirror and, once at least one mirror has accepted the full batch,
// emits a new signed ref-state event superseding the previous one.
package publisher

import (
	"context"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/eventbus"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/nostrsync/ngit/remote/objectstore"
	"github.com/nostrsync/ngit/remote/refstate"
	"github.com/nostrsync/ngit/remote/signer"
	"github.com/nostrsync/ngit/remote/transport"
	"github.com/pkg/errors"
)

// Refspec is one parsed `[+]<src>:<dst>` token from a push batch.
type Refspec struct {
	Force bool
	Src   string // "" for a deletion
	Dst   string
}

// ParseRefspec parses a single `[+]<src>:<dst>` token. An empty src
// marks a deletion.
func ParseRefspec(raw string) (Refspec, error) {
	force := strings.HasPrefix(raw, "+")
	raw = strings.TrimPrefix(raw, "+")
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return Refspec{}, errors.Errorf("malformed refspec %q", raw)
	}
	return Refspec{Force: force, Src: parts[0], Dst: parts[1]}, nil
}

// MirrorOutcome is the per-mirror push result, used for reporting.
type MirrorOutcome struct {
	Mirror    transport.MirrorTarget
	Succeeded bool
	Rejected  map[string]string // dst -> rejection reason, for partial failures
	Err       error
}

// RefResult is the per-refspec response line the Helper Loop emits:
// either "ok <dst>" or "error <dst> <msg>".
type RefResult struct {
	Dst string
	OK  bool
	Msg string
}

// Publish executes one push batch: it computes the intended post-push
// state from local refs merged over the previous authoritative state,
// pushes to each mirror independently, and publishes the new ref-state
// event only if at least one mirror accepted the whole batch.
func Publish(
	ctx context.Context,
	store *objectstore.Store,
	mux *transport.Multiplexer,
	bus *eventbus.Bus,
	sgn signer.Signer,
	mirrors []transport.MirrorTarget,
	previousState *refstate.RefState,
	identifier string,
	relays []string,
	refspecs []Refspec,
) ([]RefResult, error) {
	overlay := map[string]string{}
	for _, rs := range refspecs {
		if rs.Src == "" {
			overlay[rs.Dst] = ""
			continue
		}
		tip, err := store.GetTip(rs.Src)
		if err != nil {
			return errorResults(refspecs, err.Error()), nil
		}
		overlay[rs.Dst] = tip
	}

	intended, err := previousState.Merge(overlay)
	if err != nil {
		return errorResults(refspecs, err.Error()), nil
	}

	outcomes := pushToMirrors(ctx, mux, mirrors, refspecs)

	anySucceededFully := false
	for _, o := range outcomes {
		if o.Succeeded && len(o.Rejected) == 0 {
			anySucceededFully = true
		}
	}

	results := buildResults(refspecs, outcomes)

	if !anySucceededFully {
		return results, errors.New("all mirrors failed to accept the full refspec batch")
	}

	if err := publishState(ctx, bus, sgn, identifier, relays, intended); err != nil {
		return results, errors.Wrap(err, "publish failed")
	}
	return results, nil
}

func pushToMirrors(ctx context.Context, mux *transport.Multiplexer, mirrors []transport.MirrorTarget, refspecs []Refspec) []MirrorOutcome {
	outcomes := make([]MirrorOutcome, len(mirrors))
	for i, m := range mirrors {
		outcomes[i] = pushToMirror(ctx, mux, m, refspecs)
	}
	return outcomes
}

func pushToMirror(ctx context.Context, mux *transport.Multiplexer, m transport.MirrorTarget, refspecs []Refspec) MirrorOutcome {
	out := MirrorOutcome{Mirror: m, Rejected: map[string]string{}}
	for _, rs := range refspecs {
		if rs.Src == "" && !m.GraspServer && !rs.Force {
			out.Rejected[rs.Dst] = "non-grasp mirror refuses deletion"
			continue
		}
		spec := rs.Src + ":" + rs.Dst
		if rs.Force {
			spec = "+" + spec
		}
		if _, err := mux.Push(ctx, m, spec, rs.Force); err != nil {
			out.Rejected[rs.Dst] = err.Error()
			continue
		}
	}
	out.Succeeded = true
	return out
}

func buildResults(refspecs []Refspec, outcomes []MirrorOutcome) []RefResult {
	results := make([]RefResult, 0, len(refspecs))
	for _, rs := range refspecs {
		rejectedEverywhere := true
		var lastReason string
		for _, o := range outcomes {
			if reason, rejected := o.Rejected[rs.Dst]; rejected {
				lastReason = reason
				continue
			}
			rejectedEverywhere = false
		}
		if len(outcomes) > 0 && rejectedEverywhere {
			results = append(results, RefResult{Dst: rs.Dst, OK: false, Msg: lastReason})
		} else {
			results = append(results, RefResult{Dst: rs.Dst, OK: true})
		}
	}
	return results
}

func errorResults(refspecs []Refspec, msg string) []RefResult {
	results := make([]RefResult, 0, len(refspecs))
	for _, rs := range refspecs {
		results = append(results, RefResult{Dst: rs.Dst, OK: false, Msg: msg})
	}
	return results
}

// publishState signs and publishes a new RepoState event reflecting
// the intended post-push refs. The event goes out only after every
// mirror push has returned.
func publishState(ctx context.Context, bus *eventbus.Bus, sgn signer.Signer, identifier string, relays []string, intended *refstate.RefState) error {
	if sgn == nil {
		return errors.New("no signing key configured; run `ngit login` first")
	}
	ev := nostr.Event{
		Kind:      nostrevent.KindRepoState,
		CreatedAt: nostr.Now(),
		Tags:      append(nostr.Tags{{"d", identifier}}, intended.Tags()...),
	}
	if err := sgn.Sign(&ev); err != nil {
		return err
	}
	accepted, failures := bus.Publish(ctx, relays, ev)
	if len(accepted) == 0 {
		var reasons []string
		for url, err := range failures {
			reasons = append(reasons, url+": "+err.Error())
		}
		return errors.Errorf("every relay rejected the new ref-state event: %s", strings.Join(reasons, "; "))
	}
	bus.Put(&ev)
	return nil
}
