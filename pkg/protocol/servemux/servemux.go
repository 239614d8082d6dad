// Package servemux wraps http.ServeMux with permissive CORS so browser
// dashboards can call the API from any origin.
package servemux

import (
	"net/http"

	"github.com/rs/cors"
)

// S is a ServeMux whose responses carry CORS headers.
type S struct {
	*http.ServeMux
	cors *cors.Cors
}

// New returns an empty mux allowing all origins.
func New() (c *S) {
	return &S{
		ServeMux: http.NewServeMux(),
		cors:     cors.AllowAll(),
	}
}

func (c *S) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.cors.Handler(c.ServeMux).ServeHTTP(w, r)
}
