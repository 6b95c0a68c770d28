// Package cascade implements the unified read path (§4.1): answering
// retrieve_entry/retrieve_action by trying scratch, then authored,
// then dht, then cache, then the network, writing every miss that the
// network resolves back into cache. must_get_* callers get strict
// failure instead of a cache-filling retry when local-only lookup
// misses.
package cascade

import (
	"context"

	"github.com/holochain/holochain-core/pkg/holo"
)

// Source tags which store answered a retrieve call.
type Source string

const (
	SourceScratch Source = "scratch"
	SourceAuthored Source = "authored"
	SourceDht     Source = "dht"
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Strategy selects whether a miss may fall through to the network.
type Strategy int

const (
	// LocalOnly never consults the network; a miss returns ok=false.
	LocalOnly Strategy = iota
	// MustGet allows a network fetch and turns a miss into
	// herr.ValidationOutcome-shaped failure via the caller's own
	// must_get_* wrapper rather than returning ok=false.
	MustGet
)

// GetOptions parameterizes a retrieve call.
type GetOptions struct {
	Strategy Strategy
}

// RecordLookup is satisfied by each local store the cascade consults
// in priority order. A nil, false, nil return means "not present
// here", distinct from an error.
type RecordLookup interface {
	GetRecordByAction(ctx context.Context, hash holo.ActionHash) (*holo.Record, bool, error)
	GetRecordByEntry(ctx context.Context, hash holo.EntryHash) (*holo.Record, bool, error)
}

// CacheWriter additionally accepts records the cascade pulled from
// the network, so the next lookup is local. Hits in scratch, authored
// or dht are not copied into the cache.
type CacheWriter interface {
	RecordLookup
	PutRecord(ctx context.Context, rec *holo.Record) error
}

// NetworkFetcher is the cascade's last-resort source, backed by
// pkg/network once wired. Returning nil, nil means the network has no
// answer (as opposed to a transport error).
type NetworkFetcher interface {
	FetchRecordByAction(ctx context.Context, hash holo.ActionHash) (*holo.Record, error)
	FetchRecordByEntry(ctx context.Context, hash holo.EntryHash) (*holo.Record, error)
}

// Cascade composes one space's local stores and its network handle.
// Scratch is optional (nil when there is no in-flight workflow) and,
// when present, always wins.
type Cascade struct {
	Scratch  RecordLookup
	Authored RecordLookup
	Dht      RecordLookup
	Cache    CacheWriter
	Network  NetworkFetcher
}

// RetrieveAction answers retrieve_action(hash) over the prioritized
// source chain, caching a network hit.
func (c *Cascade) RetrieveAction(ctx context.Context, hash holo.ActionHash, opts GetOptions) (*holo.Record, Source, error) {
	for _, l := range c.localLookups() {
		rec, ok, err := l.lookup.GetRecordByAction(ctx, hash)
		if err != nil {
			return nil, "", err
		}
		if ok {
			return rec, l.source, nil
		}
	}

	if opts.Strategy == LocalOnly || c.Network == nil {
		return nil, "", nil
	}

	rec, err := c.Network.FetchRecordByAction(ctx, hash)
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, "", nil
	}
	if c.Cache != nil {
		if err := c.Cache.PutRecord(ctx, rec); err != nil {
			return nil, "", err
		}
	}
	return rec, SourceNetwork, nil
}

// RetrieveEntry answers retrieve_entry(hash) the same way.
func (c *Cascade) RetrieveEntry(ctx context.Context, hash holo.EntryHash, opts GetOptions) (*holo.Record, Source, error) {
	for _, l := range c.localLookups() {
		rec, ok, err := l.lookup.GetRecordByEntry(ctx, hash)
		if err != nil {
			return nil, "", err
		}
		if ok {
			return rec, l.source, nil
		}
	}

	if opts.Strategy == LocalOnly || c.Network == nil {
		return nil, "", nil
	}

	rec, err := c.Network.FetchRecordByEntry(ctx, hash)
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, "", nil
	}
	if c.Cache != nil {
		if err := c.Cache.PutRecord(ctx, rec); err != nil {
			return nil, "", err
		}
	}
	return rec, SourceNetwork, nil
}

// MustGetAction is the strict form: a miss (local or network) yields
// herr.ValidationOutcome-grade failure rather than ok=false, matching
// §4.1's "must_get_* are strict" rule.
func (c *Cascade) MustGetAction(ctx context.Context, hash holo.ActionHash) (*holo.Record, error) {
	rec, _, err := c.RetrieveAction(ctx, hash, GetOptions{Strategy: MustGet})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &DepMissingError{Hash: holo.LinkableFromAction(hash)}
	}
	return rec, nil
}

// MustGetEntry is MustGetAction's entry-hash counterpart.
func (c *Cascade) MustGetEntry(ctx context.Context, hash holo.EntryHash) (*holo.Record, error) {
	rec, _, err := c.RetrieveEntry(ctx, hash, GetOptions{Strategy: MustGet})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &DepMissingError{Hash: holo.LinkableFromEntry(hash)}
	}
	return rec, nil
}

// DepMissingError reports the dependency a must_get_* call could not
// resolve locally or over the network, per §4.1's DepMissingFromDht.
type DepMissingError struct {
	Hash holo.AnyLinkableHash
}

func (e *DepMissingError) Error() string {
	return "cascade: dependency not found on dht: " + e.Hash.String()
}

type prioritizedLookup struct {
	source Source
	lookup RecordLookup
}

func (c *Cascade) localLookups() []prioritizedLookup {
	var ls []prioritizedLookup
	if c.Scratch != nil {
		ls = append(ls, prioritizedLookup{SourceScratch, c.Scratch})
	}
	if c.Authored != nil {
		ls = append(ls, prioritizedLookup{SourceAuthored, c.Authored})
	}
	if c.Dht != nil {
		ls = append(ls, prioritizedLookup{SourceDht, c.Dht})
	}
	if c.Cache != nil {
		ls = append(ls, prioritizedLookup{SourceCache, c.Cache})
	}
	return ls
}
