// Package version records the release identity of the troczen binaries.
package version

var (
	// Name is the service name reported by the API.
	Name = "troczen"
	// V is the current release tag.
	V = "v0.3.1"
	// URL is the canonical repository location.
	URL = "https://troczen.dev/source"
	// Description is the short blurb printed in help output and the API
	// information document.
	Description = "stateless economic engines for the TrocZen local exchange network"
)
