// Package dashboard aggregates the per-user navigation view: network
// position, per-market dividend, parameters, circulation, credentials and
// derived signals. Everything is computed on demand from the relay.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"troczen.dev/pkg/dragon/circuits"
	"troczen.dev/pkg/dragon/du"
	"troczen.dev/pkg/dragon/params"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/interfaces/relay"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/values"
)

// maxCredentialsShown bounds the credential list embedded in a market block.
const maxCredentialsShown = 5

// Thresholds are the signal trigger points. They are tunable per deployment
// but the defaults are part of the protocol.
type Thresholds struct {
	HealthLow  float64
	HealthHigh float64
	C2High     float64
	C2Low      float64
	TTLFast    int
	TTLSlow    int
	AlphaHigh  float64
	AlphaLow   float64
	DUHigh     float64
	LoopsHigh  int
}

// DefaultThresholds returns the protocol default signal trigger points.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HealthLow:  1.0,
		HealthHigh: 1.5,
		C2High:     0.12,
		C2Low:      0.05,
		TTLFast:    14,
		TTLSlow:    60,
		AlphaHigh:  0.5,
		AlphaLow:   0.1,
		DUHigh:     20,
		LoopsHigh:  10,
	}
}

// Builder assembles dashboards from the three engines and the relay.
type Builder struct {
	relay         relay.I
	params        *params.Engine
	du            *du.Engine
	circuits      *circuits.Indexer
	oraclePubkey  string
	defaultMarket string
	thresholds    Thresholds
}

// NewBuilder wires a dashboard builder. defaultMarket is assumed for users
// with no bond activity anywhere.
func NewBuilder(
	r relay.I, p *params.Engine, d *du.Engine, x *circuits.Indexer,
	oraclePubkey, defaultMarket string, th Thresholds,
) *Builder {
	return &Builder{
		relay:         r,
		params:        p,
		du:            d,
		circuits:      x,
		oraclePubkey:  oraclePubkey,
		defaultMarket: defaultMarket,
		thresholds:    th,
	}
}

// Dashboard is the full navigation view of one user.
type Dashboard struct {
	Npub       string         `json:"npub"`
	ComputedAt string         `json:"computed_at"`
	Network    *Network       `json:"network"`
	Markets    []*MarketBlock `json:"markets"`
	Summary    *Summary       `json:"summary"`
}

// Network is the user's position in the social graph.
type Network struct {
	N1       int     `json:"n1"`
	N2       int     `json:"n2"`
	N2PerN1  float64 `json:"n2_per_n1"`
	Category string  `json:"category"`
}

// MarketBlock is the per-market slice of a dashboard.
type MarketBlock struct {
	Market      string           `json:"market_id"`
	DU          DUBlock          `json:"du"`
	Params      ParamsBlock      `json:"params"`
	Circulation CirculationBlock `json:"circulation"`
	Credentials CredentialsBlock `json:"credentials"`
	Position    PositionBlock    `json:"position"`
	Signals     []string         `json:"signals"`
}

// DUBlock summarizes the dividend for display.
type DUBlock struct {
	Daily      float64 `json:"daily"`
	Monthly    float64 `json:"monthly"`
	Base       float64 `json:"base"`
	SkillBonus float64 `json:"skill_bonus"`
	Multiplier float64 `json:"multiplier"`
	Active     bool    `json:"active"`
}

// ParamsBlock summarizes the dynamic parameters.
type ParamsBlock struct {
	C2          float64 `json:"c2"`
	Alpha       float64 `json:"alpha"`
	TTLOptimal  int     `json:"ttl_optimal_days"`
	HealthRatio float64 `json:"health_ratio"`
}

// CirculationBlock summarizes the user's bond circulation.
type CirculationBlock struct {
	LoopsThisMonth  int     `json:"loops_this_month"`
	MedianReturnAge float64 `json:"median_return_age_days"`
	InTransitCount  int     `json:"in_transit_count"`
	InTransitValue  float64 `json:"in_transit_value"`
	AvgResidualTTL  float64 `json:"avg_residual_ttl_days"`
}

// CredentialRef is the abbreviated credential entry shown on a dashboard.
type CredentialRef struct {
	PermitID  string `json:"permit_id"`
	Level     int    `json:"level"`
	ExpiresAt int64  `json:"expires_at"`
}

// CredentialsBlock is the credential count plus the first few entries.
type CredentialsBlock struct {
	Count int             `json:"count"`
	List  []CredentialRef `json:"list"`
}

// PositionBlock holds the approximate percentile placement. Real percentiles
// would need a scan over every user; the stateless estimate just shifts the
// median by the dividend.
type PositionBlock struct {
	DUPercentile    int    `json:"du_percentile"`
	LoopsPercentile int    `json:"loops_percentile"`
	Note            string `json:"note"`
}

// Summary totals the market blocks.
type Summary struct {
	TotalDUDaily    float64 `json:"total_du_daily"`
	TotalDUMonthly  float64 `json:"total_du_monthly"`
	TotalLoops30d   int     `json:"total_loops_30d"`
	ActiveMarkets   int     `json:"active_markets"`
	NetworkCategory string  `json:"network_category"`
}

// Build assembles the dashboard for a user. When market is non-empty only
// that market is reported; otherwise each market the user has issued bonds in
// (or the default market when none). Market blocks are computed concurrently.
func (b *Builder) Build(c context.T, user, market string) (
	d *Dashboard, err error,
) {
	now := time.Now().Unix()
	userMarkets, err := b.userMarkets(c, user)
	if chk.E(err) {
		return
	}
	if market != "" {
		var kept []string
		for _, m := range userMarkets {
			if m == market {
				kept = append(kept, m)
			}
		}
		userMarkets = kept
	}
	network, err := b.networkPosition(c, user)
	if chk.E(err) {
		return
	}
	blocks := make([]*MarketBlock, len(userMarkets))
	g, gc := errgroup.WithContext(c)
	for i, m := range userMarkets {
		g.Go(func() (err error) {
			blocks[i], err = b.marketBlock(gc, user, m)
			return
		})
	}
	if err = g.Wait(); chk.E(err) {
		return
	}
	d = &Dashboard{
		Npub:       user,
		ComputedAt: time.Unix(now, 0).UTC().Format(time.RFC3339),
		Network:    network,
		Markets:    blocks,
		Summary:    summarize(network, blocks),
	}
	return
}

func (b *Builder) marketBlock(c context.T, user, market string) (
	mb *MarketBlock, err error,
) {
	duRes, err := b.du.Calculate(c, user, market)
	if chk.E(err) {
		return
	}
	p, err := b.params.AllParams(c, user, market)
	if chk.E(err) {
		return
	}
	circ, err := b.circuits.UserCirculationStats(c, user, market)
	if chk.E(err) {
		return
	}
	creds, err := b.userCredentials(c, user)
	if chk.E(err) {
		return
	}
	shown := creds
	if len(shown) > maxCredentialsShown {
		shown = shown[:maxCredentialsShown]
	}
	multiplier := duRes.Multiplier
	if !duRes.Active {
		multiplier = 1
	}
	mb = &MarketBlock{
		Market: market,
		DU: DUBlock{
			Daily:      duRes.DU,
			Monthly:    duRes.DUMonthly,
			Base:       duRes.DUBase,
			SkillBonus: duRes.DUSkill,
			Multiplier: multiplier,
			Active:     duRes.Active,
		},
		Params: ParamsBlock{
			C2:          p.C2,
			Alpha:       p.Alpha,
			TTLOptimal:  p.TTLOptimal,
			HealthRatio: healthRatio(p),
		},
		Circulation: CirculationBlock{
			LoopsThisMonth:  circ.Loops30d,
			MedianReturnAge: circ.MedianCircuitAge,
			InTransitCount:  circ.InTransitCount,
			InTransitValue:  circ.InTransitValue,
			AvgResidualTTL:  circ.AvgResidualTTLDays,
		},
		Credentials: CredentialsBlock{Count: len(creds), List: shown},
		Position:    position(duRes),
		Signals:     b.signals(p, duRes, circ),
	}
	return
}

func (b *Builder) networkPosition(c context.T, user string) (
	n *Network, err error,
) {
	n1, err := b.du.N1(c, user)
	if chk.E(err) {
		return
	}
	n2, err := b.du.N2(c, user)
	if chk.E(err) {
		return
	}
	n = &Network{
		N1:       len(n1),
		N2:       len(n2),
		Category: NetworkCategory(len(n1), len(n2)),
	}
	if len(n1) > 0 {
		n.N2PerN1 = round(float64(len(n2))/float64(len(n1)), 1)
	}
	return
}

// NetworkCategory maps the (N1, N2) counts to a weaver category.
func NetworkCategory(n1, n2 int) string {
	switch {
	case n1 >= 10 && n2 >= 50:
		return "Tisseur"
	case n1 >= 5:
		return "Actif"
	case n1 >= 2:
		return "Emergent"
	default:
		return "Starter"
	}
}

// userMarkets finds the markets the user has issued bonds in, falling back to
// the default market when none.
func (b *Builder) userMarkets(c context.T, user string) (
	mm []string, err error,
) {
	var pk []byte
	if pk, err = hex.Dec(user); chk.E(err) {
		return
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.Bond)
	f.Authors = f.Authors.Append(pk)
	f.Limit = values.ToUintPointer(100)
	evs, err := b.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	seen := make(map[string]struct{})
	for _, ev := range evs {
		bd, ok := records.ParseBond(ev)
		if !ok || bd.Market == "" {
			continue
		}
		seen[bd.Market] = struct{}{}
	}
	for m := range seen {
		mm = append(mm, m)
	}
	sort.Strings(mm)
	if len(mm) == 0 {
		mm = []string{b.defaultMarket}
	}
	return
}

func (b *Builder) userCredentials(c context.T, user string) (
	creds []CredentialRef, err error,
) {
	if b.oraclePubkey == "" {
		return
	}
	var pk []byte
	if pk, err = hex.Dec(b.oraclePubkey); chk.E(err) {
		return
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.Credential)
	f.Authors = f.Authors.Append(pk)
	f.Tags = f.Tags.AppendTags(tag.New("#p", user))
	f.Limit = values.ToUintPointer(100)
	evs, err := b.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	for _, ev := range evs {
		cr, ok := records.ParseCredential(ev)
		if !ok {
			continue
		}
		creds = append(creds, CredentialRef{
			PermitID:  cr.PermitID,
			Level:     cr.Level,
			ExpiresAt: cr.ExpiresAt,
		})
	}
	return
}

func position(duRes *du.Result) PositionBlock {
	duPercentile := 50
	if duRes.Active {
		switch {
		case duRes.DU > 20:
			duPercentile = 25
		case duRes.DU > 15:
			duPercentile = 40
		case duRes.DU < 10:
			duPercentile = 60
		}
	}
	return PositionBlock{
		DUPercentile:    duPercentile,
		LoopsPercentile: 50,
		Note:            "approximate, full percentile scan not implemented",
	}
}

// signals derives the textual advice list from the numbers. When nothing
// triggers, a single stable-network signal is emitted.
func (b *Builder) signals(
	p *params.All, duRes *du.Result, circ *circuits.CirculationStats,
) (signals []string) {
	th := b.thresholds
	health := 1.0
	if p.C2Details != nil {
		health = p.C2Details.HealthRatio
	}
	if health < th.HealthLow {
		signals = append(signals,
			"high expiry rate, network needs revitalizing")
	} else if health > th.HealthHigh {
		signals = append(signals, "network in good health")
	}
	if p.C2 > th.C2High {
		signals = append(signals, "network accelerating strongly")
	} else if p.C2 < th.C2Low {
		signals = append(signals, "slow network, consider widening N1")
	}
	if p.TTLOptimal < th.TTLFast {
		signals = append(signals,
			fmt.Sprintf("fast network, consider TTL ~%dd", p.TTLOptimal))
	} else if p.TTLOptimal > th.TTLSlow {
		signals = append(signals,
			fmt.Sprintf("patient network, suggested TTL %dd", p.TTLOptimal))
	}
	if p.Alpha > th.AlphaHigh {
		signals = append(signals, "skills highly valued in this market")
	} else if p.Alpha < th.AlphaLow {
		signals = append(signals, "skills barely differentiating here")
	}
	if !duRes.Active {
		signals = append(signals,
			fmt.Sprintf("DU inactive, needs %d reciprocal follows", du.MinN1))
	} else if duRes.DU > th.DUHigh {
		signals = append(signals, "high DU, very active network")
	}
	if circ.Loops30d > th.LoopsHigh {
		signals = append(signals,
			fmt.Sprintf("%d loops this month, excellent circulation",
				circ.Loops30d))
	} else if circ.Loops30d == 0 {
		signals = append(signals, "no loops this month, issue some bonds")
	}
	if len(signals) == 0 {
		signals = append(signals, "stable network, keep going")
	}
	return
}

func healthRatio(p *params.All) float64 {
	if p.C2Details == nil {
		return 1.0
	}
	return p.C2Details.HealthRatio
}

func summarize(network *Network, blocks []*MarketBlock) *Summary {
	s := &Summary{NetworkCategory: network.Category}
	for _, mb := range blocks {
		s.TotalDUDaily += mb.DU.Daily
		s.TotalLoops30d += mb.Circulation.LoopsThisMonth
		if mb.DU.Active {
			s.ActiveMarkets++
		}
	}
	s.TotalDUDaily = round(s.TotalDUDaily, 2)
	s.TotalDUMonthly = round(s.TotalDUDaily*30, 2)
	return s
}

// Text renders a dashboard for a terminal or SMS gateway.
func Text(d *Dashboard) string {
	var sb strings.Builder
	bar := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)
	fmt.Fprintln(&sb, bar)
	fmt.Fprintf(&sb, "NAVIGATION BOARD - %.16s...\n", d.Npub)
	fmt.Fprintf(&sb, "Computed at: %s\n", d.ComputedAt)
	fmt.Fprintln(&sb, bar)
	fmt.Fprintln(&sb)
	fmt.Fprintln(&sb, "NETWORK POSITION")
	fmt.Fprintf(&sb, "  N1=%d · N2=%d · N2/N1=%g\n",
		d.Network.N1, d.Network.N2, d.Network.N2PerN1)
	fmt.Fprintf(&sb, "  Category: %s\n", d.Network.Category)
	for _, m := range d.Markets {
		fmt.Fprintln(&sb)
		fmt.Fprintln(&sb, thin)
		fmt.Fprintf(&sb, "MARKET: %s\n", m.Market)
		fmt.Fprintln(&sb, thin)
		if m.DU.Active {
			fmt.Fprintf(&sb, "DU: %g Zen/day (%g/month)\n",
				m.DU.Daily, m.DU.Monthly)
			fmt.Fprintf(&sb, "  Base: %g + Bonus: %g (x%g)\n",
				m.DU.Base, m.DU.SkillBonus, m.DU.Multiplier)
		} else {
			fmt.Fprintln(&sb, "DU: Inactive")
		}
		fmt.Fprintf(&sb, "C²: %.4f · alpha: %.2f\n", m.Params.C2, m.Params.Alpha)
		fmt.Fprintf(&sb, "Optimal TTL: %dd\n", m.Params.TTLOptimal)
		fmt.Fprintf(&sb, "Loops 30d: %d · Median age: %gd\n",
			m.Circulation.LoopsThisMonth, m.Circulation.MedianReturnAge)
		fmt.Fprintf(&sb, "In transit: %d bonds (%g Zen)\n",
			m.Circulation.InTransitCount, m.Circulation.InTransitValue)
		if len(m.Signals) > 0 {
			fmt.Fprintln(&sb)
			fmt.Fprintln(&sb, "SIGNALS:")
			for _, s := range m.Signals {
				fmt.Fprintf(&sb, "  %s\n", s)
			}
		}
	}
	fmt.Fprintln(&sb)
	fmt.Fprintln(&sb, bar)
	fmt.Fprintln(&sb, "SUMMARY")
	fmt.Fprintf(&sb, "Total DU: %g Zen/day\n", d.Summary.TotalDUDaily)
	fmt.Fprintf(&sb, "Loops 30d: %d\n", d.Summary.TotalLoops30d)
	fmt.Fprintf(&sb, "Active markets: %d\n", d.Summary.ActiveMarkets)
	fmt.Fprintln(&sb, bar)
	return sb.String()
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
