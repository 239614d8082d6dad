// Package openapi exposes the DRAGON and ORACLE engines over an HTTP API
// described by an OpenAPI schema. Every operation reads the relay at call
// time; a relay outage surfaces as a 503 on the affected endpoint.
package openapi

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"troczen.dev/pkg/app/dragon"
	"troczen.dev/pkg/app/oracle"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/protocol/servemux"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/keys"
)

// Operations carries the engine handles the HTTP operations dispatch to.
// The oracle service is nil when no issuer key is configured; its endpoints
// then answer 503.
type Operations struct {
	dragon        *dragon.Service
	oracle        *oracle.Service
	path          string
	defaultMarket string
	queryTimeout  time.Duration
}

// New registers every API operation on a fresh huma API bound to the mux.
func New(
	d *dragon.Service, o *oracle.Service, name, version, description string,
	path, defaultMarket string, queryTimeout time.Duration, sm *servemux.S,
) huma.API {
	a := NewHuma(sm, name, version, description)
	huma.AutoRegister(a, &Operations{
		dragon:        d,
		oracle:        o,
		path:          path,
		defaultMarket: defaultMarket,
		queryTimeout:  queryTimeout,
	})
	return a
}

// NewHuma builds a huma API over the mux with the service metadata filled
// into the OpenAPI document.
func NewHuma(sm *servemux.S, name, version, description string) huma.API {
	config := huma.DefaultConfig(name, version)
	config.Info.Description = description
	return humago.New(sm.ServeMux, config)
}

// reqContext caps one operation's relay work at the configured query
// timeout.
func (x *Operations) reqContext(ctx context.T) (context.T, context.F) {
	if x.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.Timeout(ctx, x.queryTimeout)
}

// market applies the configured default when a request names no market.
func (x *Operations) market(m string) string {
	if m == "" {
		return x.defaultMarket
	}
	return m
}

// npub normalizes a user key path parameter, accepting bech32 npub or hex.
// Malformed values pass through and match nothing downstream.
func npub(v string) string {
	if pk, err := keys.DecodeNpubOrHex(v); err == nil {
		return hex.Enc(pk)
	}
	return v
}
