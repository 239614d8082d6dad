// Package main serves the TrocZen HTTP API: DRAGON economy reads and ORACLE
// credential reads, all computed live from the configured nostr relay.
// Configuration is via environment variables or an optional .env file.
package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/pkg/profile"
	"troczen.dev/pkg/app"
	"troczen.dev/pkg/app/config"
	"troczen.dev/pkg/app/dragon"
	"troczen.dev/pkg/app/oracle"
	"troczen.dev/pkg/crypto/p256k"
	"troczen.dev/pkg/protocol/openapi"
	"troczen.dev/pkg/protocol/servemux"
	"troczen.dev/pkg/protocol/ws"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/interrupt"
	"troczen.dev/pkg/utils/keys"
	"troczen.dev/pkg/utils/log"
	"troczen.dev/pkg/utils/lol"
	"troczen.dev/pkg/version"
)

const apiPath = "/api"

func main() {
	var err error
	var cfg *config.C
	if cfg, err = config.New(); chk.T(err) {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(1)
	}
	if config.HelpRequested() {
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	if config.GetEnv() {
		config.PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	}
	lol.SetLogLevel(cfg.LogLevel)
	lol.SetProduction(cfg.Production)
	if cfg.LogFile != "" {
		lol.UseLogFile(cfg.LogFile)
	}
	log.I.F("starting %s %s", cfg.AppName, version.V)
	switch cfg.Pprof {
	case "cpu":
		defer profile.Start(profile.CPUProfile).Stop()
	case "memory":
		defer profile.Start(profile.MemProfile).Stop()
	case "allocation":
		defer profile.Start(profile.MemProfileAllocs).Stop()
	}
	if cfg.Pprof != "" {
		go func() { chk.E(http.ListenAndServe("127.0.0.1:6060", nil)) }()
	}
	c, cancel := context.Cancel(context.Bg())
	defer cancel()
	interrupt.AddHandler(cancel)
	go app.MonitorResources(c)

	var client *ws.Client
	if client, err = ws.RelayConnect(c, cfg.RelayURL); chk.E(err) {
		log.E.F("cannot reach relay %s: %v", cfg.RelayURL, err)
		os.Exit(1)
	}
	defer func() { chk.E(client.Close()) }()
	log.I.F("connected to relay %s", cfg.RelayURL)

	var o *oracle.Service
	if cfg.OracleNsec != "" {
		var sec []byte
		if sec, err = keys.DecodeNsecOrHex(cfg.OracleNsec); chk.E(err) {
			log.E.F("invalid ORACLE_NSEC_HEX: %v", err)
			os.Exit(1)
		}
		sign := &p256k.Signer{}
		if err = sign.InitSec(sec); chk.E(err) {
			log.E.F("invalid ORACLE_NSEC_HEX: %v", err)
			os.Exit(1)
		}
		o = oracle.New(client, sign, cfg.PageSize, cfg.MaxResults)
		if cfg.OraclePubkey == "" {
			cfg.OraclePubkey = o.Pubkey()
		}
		log.I.F("oracle endpoints enabled for %s", o.Pubkey())
	} else {
		log.W.Ln("ORACLE_NSEC_HEX not set, oracle endpoints answer 503")
	}
	d := dragon.New(client, cfg)

	sm := servemux.New()
	openapi.New(
		d, o, cfg.AppName, version.V, version.Description,
		apiPath, cfg.Market, cfg.QueryTimeout, sm,
	)
	addr := fmt.Sprintf("%s:%d", cfg.Listen, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: sm,
	}
	interrupt.AddHandler(func() { chk.E(server.Close()) })
	go func() {
		<-c.Done()
		chk.E(server.Close())
	}()
	log.I.F("API listening on %s", addr)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.E.F("server terminated: %v", err)
		os.Exit(1)
	}
}
