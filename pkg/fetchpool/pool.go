// Package fetchpool implements the fetch pool (§4.2): an in-memory,
// insertion-ordered mapping from op hash to the sources it can be
// fetched from, polled in bounded batches with fair round-robin
// source rotation. Grounded on the Rust FetchPool/State/Sources
// design: a linked-hash-map queue where both touching an item during
// a poll and selecting a source rotate to the back, so no single item
// or source starves the others.
package fetchpool

import (
	"container/list"
	"sync"
	"time"

	"github.com/holochain/holochain-core/pkg/holo"
)

// NumItemsPerPoll bounds how many queue items one NextBatch call
// examines.
const NumItemsPerPoll = 100

const (
	defaultItemRetryDelay   = 90 * time.Second
	defaultSourceRetryDelay = 5 * time.Minute
)

// BatchItem is one (key, source) pair NextBatch hands to the caller
// for an actual network fetch.
type BatchItem struct {
	Key        holo.DhtOpHash
	Space      holo.DnaHash
	Source     holo.AgentPubKey
	Context    uint32
	HasContext bool
}

type sourceRecord struct {
	agent       holo.AgentPubKey
	lastRequest time.Time
}

type item struct {
	key         holo.DhtOpHash
	space       holo.DnaHash
	sources     *list.List // of *sourceRecord, front = next to try
	sourceIndex map[string]*list.Element
	context     uint32
	hasContext  bool
	lastFetch   time.Time
}

// Pool is safe for concurrent use.
type Pool struct {
	mu               sync.Mutex
	order            *list.List // of *item, front = oldest untouched
	index            map[string]*list.Element
	itemRetryDelay   time.Duration
	sourceRetryDelay time.Duration
}

// New builds an empty pool using the §4.2 default delays.
func New() *Pool {
	return &Pool{
		order:            list.New(),
		index:            make(map[string]*list.Element),
		itemRetryDelay:   defaultItemRetryDelay,
		sourceRetryDelay: defaultSourceRetryDelay,
	}
}

// WithDelays overrides the item/source retry delays, for tests that
// cannot wait 90s/5min for real.
func (p *Pool) WithDelays(itemRetryDelay, sourceRetryDelay time.Duration) *Pool {
	p.itemRetryDelay = itemRetryDelay
	p.sourceRetryDelay = sourceRetryDelay
	return p
}

// Push adds key to the queue if new, or merges source and OR-merges
// context into the existing entry without changing its queue
// position. context is ignored (no merge) when hasContext is false.
func (p *Pool) Push(key holo.DhtOpHash, space holo.DnaHash, source holo.AgentPubKey, context uint32, hasContext bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key.String()
	if el, ok := p.index[k]; ok {
		it := el.Value.(*item)
		p.addSource(it, source)
		if hasContext {
			if it.hasContext {
				it.context |= context
			} else {
				it.context = context
				it.hasContext = true
			}
		}
		return
	}

	it := &item{
		key:         key,
		space:       space,
		sources:     list.New(),
		sourceIndex: make(map[string]*list.Element),
		context:     context,
		hasContext:  hasContext,
	}
	p.addSource(it, source)
	el := p.order.PushBack(it)
	p.index[k] = el
}

func (p *Pool) addSource(it *item, source holo.AgentPubKey) {
	sk := source.String()
	if _, ok := it.sourceIndex[sk]; ok {
		return
	}
	el := it.sources.PushBack(&sourceRecord{agent: source})
	it.sourceIndex[sk] = el
}

// Remove drops key from the queue, called on successful ingestion.
func (p *Pool) Remove(key holo.DhtOpHash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key.String()
	el, ok := p.index[k]
	if !ok {
		return
	}
	p.order.Remove(el)
	delete(p.index, k)
}

// Len reports the number of distinct items currently queued,
// regardless of retry-delay eligibility.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// NextBatch scans up to NumItemsPerPoll items from the front of the
// queue. Every item scanned is moved to the back regardless of
// outcome, so a run of ineligible items cannot block the ones behind
// them from ever being examined. An item yields a BatchItem only if
// its own retry delay has elapsed AND it has a source whose retry
// delay has also elapsed.
func (p *Pool) NextBatch() []BatchItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	els := make([]*list.Element, 0, NumItemsPerPoll)
	for el := p.order.Front(); el != nil && len(els) < NumItemsPerPoll; el = el.Next() {
		els = append(els, el)
	}

	var out []BatchItem
	now := time.Now()
	for _, el := range els {
		it := el.Value.(*item)

		itemReady := it.lastFetch.IsZero() || now.Sub(it.lastFetch) >= p.itemRetryDelay
		if itemReady {
			if src, ok := nextSource(it, p.sourceRetryDelay); ok {
				it.lastFetch = now
				out = append(out, BatchItem{
					Key:        it.key,
					Space:      it.space,
					Source:     src,
					Context:    it.context,
					HasContext: it.hasContext,
				})
			}
		}
		p.order.MoveToBack(el)
	}
	return out
}

// nextSource scans sources from the front, moving each one visited to
// the back (mirroring the original's get_refresh-in-a-loop fairness
// rule), and returns the first whose own retry delay has elapsed.
func nextSource(it *item, delay time.Duration) (holo.AgentPubKey, bool) {
	els := make([]*list.Element, 0, it.sources.Len())
	for el := it.sources.Front(); el != nil; el = el.Next() {
		els = append(els, el)
	}

	now := time.Now()
	for _, el := range els {
		sr := el.Value.(*sourceRecord)
		eligible := sr.lastRequest.IsZero() || now.Sub(sr.lastRequest) >= delay
		it.sources.MoveToBack(el)
		if eligible {
			sr.lastRequest = now
			return sr.agent, true
		}
	}
	var zero holo.AgentPubKey
	return zero, false
}
