// Package normalize provides helpers that put relay URLs and OK/CLOSED
// message reasons into their canonical wire forms.
package normalize

import (
	"fmt"
	"net/url"
	"strings"
)

// Reason is a machine-readable prefix for OK and CLOSED envelope messages.
type Reason []byte

var (
	AuthRequired Reason = []byte("auth-required")
	PoW          Reason = []byte("pow")
	Duplicate    Reason = []byte("duplicate")
	Blocked      Reason = []byte("blocked")
	RateLimited  Reason = []byte("rate-limited")
	Invalid      Reason = []byte("invalid")
	Error        Reason = []byte("error")
	Unsupported  Reason = []byte("unsupported")
	Restricted   Reason = []byte("restricted")
)

// F prints the format string with the given parameters appended after the
// reason prefix.
func (r Reason) F(format string, params ...any) []byte {
	return []byte(string(r) + ": " + fmt.Sprintf(format, params...))
}

// Prefix reports whether the message carries this reason's prefix.
func (r Reason) Prefix(msg []byte) bool {
	return strings.HasPrefix(string(msg), string(r)+":")
}

// URL normalizes a relay address to a canonical websocket URL: scheme and
// host are lowercased, http(s) becomes ws(s), bare hosts get wss:// (ws:// for
// localhost), and any trailing slash on the path is dropped.
func URL(u string) []byte {
	u = strings.ToLower(strings.TrimSpace(u))
	if u == "" {
		return nil
	}
	if host := strings.Split(u, ":")[0]; host == "localhost" ||
		host == "127.0.0.1" {
		if !strings.HasPrefix(u, "ws") && !strings.HasPrefix(u, "http") {
			u = "ws://" + u
		}
	} else if !strings.HasPrefix(u, "ws") && !strings.HasPrefix(u, "http") {
		u = "wss://" + u
	}
	p, err := url.Parse(u)
	if err != nil {
		return nil
	}
	switch p.Scheme {
	case "http":
		p.Scheme = "ws"
	case "https":
		p.Scheme = "wss"
	}
	p.Path = strings.TrimRight(p.Path, "/")
	return []byte(p.String())
}
