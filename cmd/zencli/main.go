// Package main is zencli, a command line client for the TrocZen economy. It
// talks to the relay directly, so every number it prints is computed from
// live events rather than an API server's cache.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"troczen.dev/pkg/app/config"
	"troczen.dev/pkg/app/dragon"
	"troczen.dev/pkg/crypto/p256k"
	"troczen.dev/pkg/dragon/dashboard"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/permits"
	"troczen.dev/pkg/protocol/ws"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/keys"
	"troczen.dev/pkg/utils/log"
	"troczen.dev/pkg/utils/lol"
	"troczen.dev/pkg/version"
)

type duCmd struct {
	Npub   string `arg:"positional,required" help:"user public key in hex"`
	Market string `arg:"-m,--market" help:"market id, defaults to the user's most recent bond activity"`
}

type dashboardCmd struct {
	Npub   string `arg:"positional,required" help:"user public key in hex"`
	Market string `arg:"-m,--market" help:"market id"`
	JSON   bool   `arg:"-j,--json" help:"emit JSON instead of the text board"`
}

type paramsCmd struct {
	Npub   string `arg:"positional,required" help:"user public key in hex"`
	Market string `arg:"-m,--market" help:"market id"`
}

type healthCmd struct {
	Market string `arg:"positional,required" help:"market id"`
}

type circuitsCmd struct {
	Market string `arg:"positional,required" help:"market id"`
	Page   int    `arg:"-p,--page" default:"1" help:"page number"`
	Limit  int    `arg:"-l,--limit" default:"50" help:"results per page"`
}

type merchantsCmd struct {
	Market string `arg:"positional,required" help:"market id"`
}

type pafCmd struct {
	Market string `arg:"positional,required" help:"market id"`
}

type statsCmd struct{}

type ratesCmd struct{}

type keygenCmd struct{}

type permitCmd struct {
	Name        string   `arg:"positional,required" help:"human name of the permit, e.g. 'Maraichage Bio'"`
	Level       int      `arg:"--level" default:"1" help:"ladder level"`
	Official    bool     `arg:"--official" help:"official (V) instead of community (X) permit"`
	Description string   `arg:"--description" help:"free-form description"`
	Category    string   `arg:"--category" default:"skill" help:"skill, license or authority"`
	Skills      []string `arg:"--skill,separate" help:"skill tag, repeatable"`
	Required    int      `arg:"--required" help:"attestation threshold, 0 selects the type default"`
	Market      string   `arg:"-m,--market" help:"scope the permit to one market"`
	Nsec        string   `arg:"--nsec,env:ORACLE_NSEC_HEX" help:"issuer secret key as nsec or hex"`
}

type args struct {
	Du        *duCmd        `arg:"subcommand:du" help:"universal dividend of a user"`
	Dashboard *dashboardCmd `arg:"subcommand:dashboard" help:"full dashboard of a user"`
	Params    *paramsCmd    `arg:"subcommand:params" help:"personalised C2, alpha and TTL"`
	Health    *healthCmd    `arg:"subcommand:health" help:"health snapshot of a market"`
	Circuits  *circuitsCmd  `arg:"subcommand:circuits" help:"closed circuits of a market"`
	Merchants *merchantsCmd `arg:"subcommand:merchants" help:"merchants of a market with their bonds"`
	Paf       *pafCmd       `arg:"subcommand:paf" help:"infrastructure cost share of a market"`
	Stats     *statsCmd     `arg:"subcommand:stats" help:"system-wide activity"`
	Rates     *ratesCmd     `arg:"subcommand:rates" help:"emergent inter-market exchange rates"`
	Permit    *permitCmd    `arg:"subcommand:permit" help:"sign and publish a permit definition"`
	Keygen    *keygenCmd    `arg:"subcommand:keygen" help:"generate a fresh secret/public keypair"`

	Relay    string `arg:"-r,--relay,env:NOSTR_RELAY" default:"ws://127.0.0.1:7777" help:"websocket URL of the relay"`
	LogLevel string `arg:"--loglevel" default:"warn" help:"debug level: fatal error warn info debug trace"`
}

func (args) Version() string { return version.Name + " " + version.V }

func main() {
	var a args
	p := arg.MustParse(&a)
	lol.SetLogLevel(a.LogLevel)
	if a.Keygen == nil && p.Subcommand() == nil {
		p.Fail("a subcommand is required")
	}
	if a.Keygen != nil {
		keygen()
		return
	}
	c, cancel := context.Cancel(context.Bg())
	defer cancel()
	client, err := ws.RelayConnect(c, a.Relay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach relay %s: %v\n", a.Relay, err)
		os.Exit(2)
	}
	defer func() { chk.E(client.Close()) }()
	cfg := &config.C{PageSize: 500, MaxResults: 10000}
	svc := dragon.New(client, cfg)

	if a.Permit != nil {
		publishPermit(c, client, a.Permit)
		return
	}
	var out any
	switch {
	case a.Du != nil:
		out, err = svc.CalculateDU(c, a.Du.Npub, a.Du.Market)
	case a.Dashboard != nil:
		var board *dashboard.Dashboard
		board, err = svc.BuildDashboard(
			c, a.Dashboard.Npub, a.Dashboard.Market,
		)
		if err == nil && !a.Dashboard.JSON {
			fmt.Println(dashboard.Text(board))
			return
		}
		out = board
	case a.Params != nil:
		out, err = svc.GetParams(c, a.Params.Npub, a.Params.Market)
	case a.Health != nil:
		out, err = svc.GetMarketHealth(c, a.Health.Market)
	case a.Circuits != nil:
		out, err = svc.GetCircuits(
			c, a.Circuits.Market, a.Circuits.Page, a.Circuits.Limit,
		)
	case a.Merchants != nil:
		out, err = svc.MerchantsWithBonds(c, a.Merchants.Market)
	case a.Paf != nil:
		out, err = svc.CalculatePAF(c, a.Paf.Market)
	case a.Stats != nil:
		out, err = svc.GetGlobalStats(c)
	case a.Rates != nil:
		out, err = svc.GetIntermarketRates(c)
	}
	if err != nil {
		log.E.F("query failed: %v", err)
		os.Exit(1)
	}
	print(out)
}

func publishPermit(c context.T, client *ws.Client, p *permitCmd) {
	if p.Nsec == "" {
		fmt.Fprintln(os.Stderr, "an issuer key is required (--nsec or ORACLE_NSEC_HEX)")
		os.Exit(1)
	}
	sec, err := keys.DecodeNsecOrHex(p.Nsec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid issuer key: %v\n", err)
		os.Exit(1)
	}
	sign := &p256k.Signer{}
	if err = sign.InitSec(sec); chk.E(err) {
		os.Exit(1)
	}
	id := permits.GenerateID(p.Name, p.Level, p.Official)
	def := permits.Definition{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Skills:      p.Skills,
		Required:    p.Required,
		Parent:      permits.ParentID(id),
		Market:      p.Market,
	}
	ev, err := def.Event()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot build definition: %v\n", err)
		os.Exit(1)
	}
	if err = ev.Sign(sign); chk.E(err) {
		os.Exit(1)
	}
	if err = client.Publish(c, ev); err != nil {
		fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
		os.Exit(1)
	}
	print(map[string]string{
		"permit_id": def.ID,
		"event_id":  hex.Enc(ev.ID),
		"issuer":    hex.Enc(sign.Pub()),
	})
}

func keygen() {
	sign := &p256k.Signer{}
	if err := sign.Generate(); chk.E(err) {
		os.Exit(1)
	}
	print(map[string]string{
		"secret_hex": hex.Enc(sign.Sec()),
		"pubkey_hex": hex.Enc(sign.Pub()),
	})
}

func print(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if chk.E(err) {
		os.Exit(1)
	}
	fmt.Println(string(b))
}
