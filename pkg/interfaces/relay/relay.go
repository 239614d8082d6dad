// Package relay defines the query surface the domain engines need from a
// nostr relay connection, abstracting over the websocket client so that
// engines can be driven by an in-memory fixture in tests.
package relay

import (
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/utils/context"
)

// I is the subset of the websocket client the stateless engines use. Every
// call opens its own short-lived subscription; none of them share state.
type I interface {
	// QuerySync collects the stored events matching the filter until EOSE.
	// The filter's Limit must be set.
	QuerySync(c context.T, f *filter.F) (evs event.S, err error)
	// QueryPaginated walks a filter backwards in time with a decreasing
	// until cursor, collecting up to maxResults events.
	QueryPaginated(c context.T, f *filter.F, pageSize, maxResults int) (
		evs event.S, err error,
	)
	// Publish submits a signed event to the relay without waiting for the
	// OK response.
	Publish(c context.T, ev *event.E) (err error)
}
