package orchestrator

import (
	"fmt"

	"github.com/chriscantu/advisord/internal/memory"
)

// Cache keys carry a per-session generation that RecordOutcome bumps, so
// stale entries become unreachable instead of being hunted down. The LRU
// evicts them by TTL or capacity.

// genLimit caps the generation map so session churn cannot grow it
// forever.
const genLimit = 10000

func (o *Orchestrator) cacheKey(sessionID, query string, maxBytes int) string {
	o.genMu.Lock()
	gen := o.gen[sessionID]
	o.genMu.Unlock()
	return fmt.Sprintf("%s\x00%d\x00%d\x00%s", sessionID, gen, maxBytes, query)
}

func (o *Orchestrator) invalidateSession(sessionID string) {
	if o.cache == nil {
		return
	}
	o.genMu.Lock()
	if len(o.gen) >= genLimit {
		// A bare reset would revive entries stored under the old
		// numbering, so the cached bundles go with it.
		o.cache.Purge()
		o.gen = make(map[string]uint64)
	}
	o.gen[sessionID]++
	o.genMu.Unlock()
}

func (o *Orchestrator) cachedBundle(sessionID, query string, maxBytes int) (memory.ContextBundle, bool) {
	if o.cache == nil {
		return memory.ContextBundle{}, false
	}
	bundle, ok := o.cache.Get(o.cacheKey(sessionID, query, maxBytes))
	if !ok {
		return memory.ContextBundle{}, false
	}
	return cloneBundle(bundle), true
}

// storeBundle caches the assembled bundle. Fallback bundles are not
// cached so a layer outage clears as soon as layers recover.
func (o *Orchestrator) storeBundle(sessionID, query string, maxBytes int, bundle memory.ContextBundle) {
	if o.cache == nil || bundle.Fallback {
		return
	}
	o.cache.Add(o.cacheKey(sessionID, query, maxBytes), cloneBundle(bundle))
}

// cloneBundle copies the bundle deeply enough that callers and the cache
// never share fragment slices.
func cloneBundle(b memory.ContextBundle) memory.ContextBundle {
	out := b
	if b.Fragments != nil {
		out.Fragments = make([]memory.Fragment, len(b.Fragments))
		copy(out.Fragments, b.Fragments)
		for i := range out.Fragments {
			if kw := out.Fragments[i].Keywords; kw != nil {
				out.Fragments[i].Keywords = append([]string(nil), kw...)
			}
		}
	}
	return out
}
