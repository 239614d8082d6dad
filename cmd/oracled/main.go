// Package main runs the oracle issuance daemon: it subscribes to incoming
// attestations on the configured relay and publishes verifiable credentials,
// badges and next-level permit definitions as thresholds are met.
//
// Exit codes: 0 on clean shutdown, 1 on a configuration error, 2 when the
// relay stays unreachable past the reconnect budget.
package main

import (
	"errors"
	"fmt"
	"os"

	"troczen.dev/pkg/app/config"
	"troczen.dev/pkg/app/oracle"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/interrupt"
	"troczen.dev/pkg/utils/log"
	"troczen.dev/pkg/utils/lol"
	"troczen.dev/pkg/version"
)

func main() {
	var err error
	var cfg *config.C
	if cfg, err = config.New(); chk.T(err) {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		os.Exit(1)
	}
	if config.HelpRequested() {
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	lol.SetLogLevel(cfg.LogLevel)
	lol.SetProduction(cfg.Production)
	if cfg.LogFile != "" {
		lol.UseLogFile(cfg.LogFile)
	}
	log.I.F("starting oracle daemon %s", version.V)
	var d *oracle.Daemon
	if d, err = oracle.NewDaemon(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	c, cancel := context.Cancel(context.Bg())
	defer cancel()
	interrupt.AddHandler(cancel)
	err = d.Run(c)
	switch {
	case err == nil:
		log.I.Ln("oracle daemon stopped")
	case errors.Is(err, oracle.ErrRelayUnreachable):
		log.E.F("giving up: %v", err)
		os.Exit(2)
	default:
		log.E.F("oracle daemon failed: %v", err)
		os.Exit(1)
	}
}
