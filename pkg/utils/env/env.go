// Package env loads KEY=value pairs from a .env style file into a map that
// satisfies the go-simpler.org/env Source interface, so a configuration file
// can be layered underneath the process environment.
package env

import (
	"bufio"
	"os"
	"strings"

	"troczen.dev/pkg/utils/chk"
)

// Env is a set of KEY=value pairs read from a .env file.
type Env map[string]string

// LookupEnv implements the go-simpler.org/env Source interface.
func (e Env) LookupEnv(key string) (s string, ok bool) {
	s, ok = e[key]
	return
}

// GetEnv reads a .env file at the given path. Blank lines and lines starting
// with # are skipped, values may be wrapped in single or double quotes, and
// an optional "export " prefix on keys is tolerated.
func GetEnv(path string) (e Env, err error) {
	var f *os.File
	if f, err = os.Open(path); chk.E(err) {
		return
	}
	defer f.Close()
	e = make(Env)
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		k = strings.TrimPrefix(strings.TrimSpace(k), "export ")
		v = strings.TrimSpace(v)
		if len(v) > 1 {
			if (v[0] == '"' && v[len(v)-1] == '"') ||
				(v[0] == '\'' && v[len(v)-1] == '\'') {
				v = v[1 : len(v)-1]
			}
		}
		e[k] = v
	}
	if err = scan.Err(); chk.E(err) {
		return
	}
	return
}
