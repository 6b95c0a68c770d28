// Package activity implements must_get_agent_activity (§4.6): a
// bounded backward walk of one agent's source chain, merged across
// whichever local stores a cascade has wired, plus any warrants
// recorded against that agent.
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/holochain/holochain-core/pkg/cascade"
	"github.com/holochain/holochain-core/pkg/holo"
)

// ErrTakeMustBePositive is returned when a ChainFilter's Take is
// present but zero.
var ErrTakeMustBePositive = errors.New("activity: take must be greater than zero when present")

// ChainFilter bounds a chain walk starting at ChainTop and proceeding
// backward through PrevAction links.
type ChainFilter struct {
	ChainTop       holo.ActionHash
	Take           *uint32
	UntilHashes    []holo.ActionHash
	UntilTimestamp *time.Time
}

func (f ChainFilter) hitsUntilHash(h holo.ActionHash) bool {
	for _, u := range f.UntilHashes {
		if u == h {
			return true
		}
	}
	return false
}

// Activity is the result of a successful walk: the retained chain
// segment plus every warrant filed against the author, independent of
// the filter's range.
type Activity struct {
	Items    []*holo.Record
	Warrants []holo.Warrant
}

// ChainTopNotFoundError is returned when a filter's ChainTop is not
// present in any store the cascade consults.
type ChainTopNotFoundError struct {
	ChainTop holo.ActionHash
}

func (e *ChainTopNotFoundError) Error() string {
	return "activity: chain top not found: " + e.ChainTop.String()
}

// IncompleteChainError is returned when walking backward hits a
// PrevAction that no local store holds, before any halt condition was
// reached.
type IncompleteChainError struct {
	MissingPrevAction holo.ActionHash
}

func (e *IncompleteChainError) Error() string {
	return "activity: chain gap, missing prev action: " + e.MissingPrevAction.String()
}

// ChainIndex answers "what did this author author at this sequence
// number", the index must_get_agent_activity's sibling lookup
// (sys validation's chain-rollback check) needs and which a plain
// hash-keyed RecordLookup cannot answer.
type ChainIndex interface {
	ActionAtSeq(ctx context.Context, author holo.AgentPubKey, seq uint32) (*holo.Record, bool, error)
}

// WarrantSource supplies warrants filed against an author.
type WarrantSource interface {
	WarrantsFor(ctx context.Context, author holo.AgentPubKey) ([]holo.Warrant, error)
}

// Resolver answers GetAgentActivity over a cascade's merged local
// stores (scratch, authored, dht, cache — never the network; a chain
// walk is local-only by design, matching sys/app validation's use of
// cascade.LocalOnly).
type Resolver struct {
	Cascade  *cascade.Cascade
	Index    ChainIndex
	Warrants WarrantSource
}

// ActionAtSeq delegates to the wired ChainIndex, satisfying
// pkg/sysvalidation's ActivitySource so a Resolver can be passed
// straight into a Checker.
func (r *Resolver) ActionAtSeq(ctx context.Context, author holo.AgentPubKey, seq uint32) (*holo.Record, bool, error) {
	if r.Index == nil {
		return nil, false, nil
	}
	return r.Index.ActionAtSeq(ctx, author, seq)
}

// GetAgentActivity walks the chain backward from filter.ChainTop,
// halting on whichever of take/until_hash/until_timestamp/genesis
// comes first, then appends every warrant on file for author.
//
// Because each step follows a specific PrevAction hash rather than an
// author+seq index, two actions can never compete for the same step:
// content addressing means a hash names exactly one action, so the
// "retain the numerically greatest hash" fork rule never has a tie to
// break here — an equivocating author's other branch simply isn't
// reachable from this chain_top and is never visited.
func (r *Resolver) GetAgentActivity(ctx context.Context, author holo.AgentPubKey, filter ChainFilter) (Activity, error) {
	if filter.Take != nil && *filter.Take == 0 {
		return Activity{}, ErrTakeMustBePositive
	}

	cur, _, err := r.Cascade.RetrieveAction(ctx, filter.ChainTop, cascade.GetOptions{Strategy: cascade.LocalOnly})
	if err != nil {
		return Activity{}, err
	}
	if cur == nil {
		return Activity{}, &ChainTopNotFoundError{ChainTop: filter.ChainTop}
	}

	var items []*holo.Record
	for {
		h := cur.Hash()
		if filter.hitsUntilHash(h) {
			break
		}
		ts := cur.SignedAction.Action.Timestamp
		if filter.UntilTimestamp != nil && !ts.After(*filter.UntilTimestamp) {
			break
		}

		items = append(items, cur)
		if filter.Take != nil && uint32(len(items)) >= *filter.Take {
			break
		}

		a := cur.SignedAction.Action
		if a.PrevAction == nil {
			break // genesis
		}

		next, _, err := r.Cascade.RetrieveAction(ctx, *a.PrevAction, cascade.GetOptions{Strategy: cascade.LocalOnly})
		if err != nil {
			return Activity{}, err
		}
		if next == nil {
			return Activity{}, &IncompleteChainError{MissingPrevAction: *a.PrevAction}
		}
		cur = next
	}

	var warrants []holo.Warrant
	if r.Warrants != nil {
		warrants, err = r.Warrants.WarrantsFor(ctx, author)
		if err != nil {
			return Activity{}, err
		}
	}

	return Activity{Items: items, Warrants: warrants}, nil
}
