// Package relaytest provides an in-memory relay.I implementation so engine
// tests can run against a fixed event set without a websocket.
package relaytest

import (
	"sort"
	"sync"

	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/utils/context"
)

// Relay holds events in memory and answers queries with the same matching
// rules a real relay applies. Published events become queryable immediately.
type Relay struct {
	mu        sync.Mutex
	events    []*event.E
	published []*event.E
	// Err, when set, is returned by every call. Used to exercise the
	// engines' degraded paths.
	Err error
}

// New builds a fixture preloaded with the given events.
func New(evs ...*event.E) *Relay {
	return &Relay{events: evs}
}

// Add appends more events to the store.
func (r *Relay) Add(evs ...*event.E) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
}

// Published returns the events submitted through Publish, in order.
func (r *Relay) Published() []*event.E {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*event.E, len(r.published))
	copy(out, r.published)
	return out
}

func (r *Relay) query(f *filter.F, max int) (evs event.S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if f.Matches(ev) {
			evs = append(evs, ev)
		}
	}
	sort.Sort(evs)
	if max > 0 && len(evs) > max {
		evs = evs[:max]
	}
	return
}

// QuerySync returns the stored events matching the filter, newest first,
// truncated to the filter's limit.
func (r *Relay) QuerySync(c context.T, f *filter.F) (evs event.S, err error) {
	if r.Err != nil {
		return nil, r.Err
	}
	max := 0
	if f.Limit != nil {
		max = int(*f.Limit)
	}
	return r.query(f, max), nil
}

// QueryPaginated returns up to maxResults matching events. The fixture holds
// everything in memory so there is no actual paging.
func (r *Relay) QueryPaginated(
	c context.T, f *filter.F, pageSize, maxResults int,
) (evs event.S, err error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.query(f, maxResults), nil
}

// Publish stores the event and records it as published.
func (r *Relay) Publish(c context.T, ev *event.E) (err error) {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.published = append(r.published, ev)
	return nil
}
