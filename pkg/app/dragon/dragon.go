// Package dragon bundles the economic engines behind one service facade:
// parameters, dividend, circuit index and dashboard, plus the aggregate
// views the HTTP API serves (market health, inter-market rates, cost
// sharing, global stats, merchant directory). Everything is computed from
// the relay at call time.
package dragon

import (
	"math"
	"sort"
	"time"

	"troczen.dev/pkg/app/config"
	"troczen.dev/pkg/dragon/circuits"
	"troczen.dev/pkg/dragon/dashboard"
	"troczen.dev/pkg/dragon/du"
	"troczen.dev/pkg/dragon/params"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/interfaces/relay"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/keys"
	"troczen.dev/pkg/utils/values"
)

// Service wires the engines to one relay connection and the process
// configuration.
type Service struct {
	relay     relay.I
	cfg       *config.C
	Params    *params.Engine
	DU        *du.Engine
	Circuits  *circuits.Indexer
	Dashboard *dashboard.Builder
}

// New builds the full engine stack around a relay connection. The configured
// oracle pubkey may be npub or hex; the engines only see hex.
func New(r relay.I, cfg *config.C) *Service {
	oraclePk := cfg.OraclePubkey
	if oraclePk != "" {
		if pk, err := keys.DecodeNpubOrHex(oraclePk); !chk.E(err) {
			oraclePk = hex.Enc(pk)
		}
	}
	p := params.NewEngine(r, cfg.PageSize, cfg.MaxResults)
	d := du.NewEngine(r, p, oraclePk, cfg.PageSize, cfg.MaxResults)
	x := circuits.NewIndexer(r, cfg.PageSize, cfg.MaxResults)
	b := dashboard.NewBuilder(
		r, p, d, x, oraclePk, cfg.Market,
		dashboard.DefaultThresholds(),
	)
	return &Service{
		relay:     r,
		cfg:       cfg,
		Params:    p,
		DU:        d,
		Circuits:  x,
		Dashboard: b,
	}
}

// BuildDashboard assembles the navigation board of one user, optionally
// narrowed to one market.
func (s *Service) BuildDashboard(c context.T, user, market string) (
	*dashboard.Dashboard, error,
) {
	return s.Dashboard.Build(c, user, market)
}

// CalculateDU computes the universal dividend of a user in a market.
func (s *Service) CalculateDU(c context.T, user, market string) (
	*du.Result, error,
) {
	return s.DU.Calculate(c, user, market)
}

// GetParams computes the dynamic parameters of a user in a market.
func (s *Service) GetParams(c context.T, user, market string) (
	*params.All, error,
) {
	return s.Params.AllParams(c, user, market)
}

// CircuitPage is one page of a market's closed circuits.
type CircuitPage struct {
	Market   string             `json:"market_id"`
	Page     int                `json:"page"`
	Limit    int                `json:"limit"`
	Count    int                `json:"count"`
	Circuits []*records.Circuit `json:"circuits"`
}

// GetCircuits lists the indexed circuits of a market.
func (s *Service) GetCircuits(c context.T, market string, page, limit int) (
	p *CircuitPage, err error,
) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	cc, err := s.Circuits.Circuits(c, market, "", 0, uint(limit))
	if chk.E(err) {
		return
	}
	if cc == nil {
		cc = []*records.Circuit{}
	}
	return &CircuitPage{
		Market:   market,
		Page:     page,
		Limit:    limit,
		Count:    len(cc),
		Circuits: cc,
	}, nil
}

// MarketHealth is a market's stats with a derived status label.
type MarketHealth struct {
	Market        string  `json:"market_id"`
	ActiveBonds   int     `json:"active_bonds"`
	ActiveValue   float64 `json:"active_value"`
	Loops30d      int     `json:"loops_30d"`
	AvgCircuitAge float64 `json:"avg_circuit_age"`
	HealthRatio   float64 `json:"health_ratio"`
	Status        string  `json:"status"`
	ComputedAt    int64   `json:"computed_at"`
}

// GetMarketHealth summarizes a market's condition.
func (s *Service) GetMarketHealth(c context.T, market string) (
	h *MarketHealth, err error,
) {
	stats, err := s.Circuits.MarketStats(c, market)
	if chk.E(err) {
		return
	}
	return &MarketHealth{
		Market:        market,
		ActiveBonds:   stats.ActiveBondsCount,
		ActiveValue:   stats.ActiveBondsValue,
		Loops30d:      stats.Loops30d,
		AvgCircuitAge: stats.AvgCircuitAgeDays,
		HealthRatio:   stats.HealthRatio,
		Status:        healthStatus(stats.HealthRatio, stats.Loops30d),
		ComputedAt:    stats.ComputedAt,
	}, nil
}

// healthStatus grades a market from its health ratio and loop count.
func healthStatus(healthRatio float64, loops int) string {
	switch {
	case healthRatio >= 1.5 && loops >= 10:
		return "excellent"
	case healthRatio >= 1.0 && loops >= 5:
		return "good"
	case healthRatio >= 0.5:
		return "moderate"
	default:
		return "needs_attention"
	}
}

// Rates is the emergent inter-market exchange matrix.
type Rates struct {
	Rates      map[string]map[string]float64 `json:"rates"`
	ComputedAt int64                         `json:"computed_at"`
	Note       string                        `json:"note"`
}

// GetIntermarketRates computes the exchange matrix from the last 30 days of
// cross-market circuits.
func (s *Service) GetIntermarketRates(c context.T) (r *Rates, err error) {
	rates, err := s.Circuits.IntermarketRates(c)
	if chk.E(err) {
		return
	}
	return &Rates{
		Rates:      rates,
		ComputedAt: time.Now().Unix(),
		Note:       "rates derived from the last 30 days of inter-market circuits",
	}, nil
}

// PAF is the per-user share of the infrastructure cost (participation aux
// frais), in zen and euro.
type PAF struct {
	Market             string  `json:"market_id"`
	MonthlyPafZen      float64 `json:"monthly_paf_zen"`
	MonthlyPafEur      float64 `json:"monthly_paf_eur"`
	ZenEurRate         float64 `json:"zen_eur_rate"`
	EstimatedUsers     int     `json:"estimated_users"`
	InfrastructureCost float64 `json:"infrastructure_cost_eur"`
	ComputedAt         int64   `json:"computed_at"`
}

// CalculatePAF splits the monthly server cost across the market's estimated
// user base, roughly three active bonds per user.
func (s *Service) CalculatePAF(c context.T, market string) (
	p *PAF, err error,
) {
	stats, err := s.Circuits.MarketStats(c, market)
	if chk.E(err) {
		return
	}
	users := stats.ActiveBondsCount / 3
	if users < 1 {
		users = 1
	}
	rate := s.cfg.ZenEurRate
	if rate <= 0 {
		rate = 1
	}
	pafEur := s.cfg.ServerCost / float64(users)
	return &PAF{
		Market:             market,
		MonthlyPafZen:      round2(pafEur / rate),
		MonthlyPafEur:      round2(pafEur),
		ZenEurRate:         rate,
		EstimatedUsers:     users,
		InfrastructureCost: s.cfg.ServerCost,
		ComputedAt:         time.Now().Unix(),
	}, nil
}

// GlobalStats aggregates system-wide activity.
type GlobalStats struct {
	ActiveBonds      int      `json:"active_bonds"`
	TotalActiveValue float64  `json:"total_active_value"`
	TotalCircuits    int      `json:"total_circuits"`
	UniqueUsers      int      `json:"unique_users"`
	ActiveMarkets    int      `json:"active_markets"`
	MarketsList      []string `json:"markets_list"`
	ComputedAt       int64    `json:"computed_at"`
}

// GetGlobalStats scans recent bonds and circuits across all markets.
func (s *Service) GetGlobalStats(c context.T) (g *GlobalStats, err error) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Bond)
	f.Limit = values.ToUintPointer(1000)
	bonds, err := s.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	f = filter.New()
	f.Kinds = kinds.New(kind.Circuit)
	f.Limit = values.ToUintPointer(1000)
	var circs event.S
	if circs, err = s.relay.QuerySync(c, f); chk.E(err) {
		return
	}
	now := time.Now().Unix()
	g = &GlobalStats{
		TotalCircuits: len(circs),
		MarketsList:   []string{},
		ComputedAt:    now,
	}
	users := make(map[string]struct{})
	marketSet := make(map[string]struct{})
	for _, ev := range bonds {
		users[ev.PubKeyString()] = struct{}{}
		b, ok := records.ParseBond(ev)
		if !ok {
			continue
		}
		if b.Active(now) {
			g.ActiveBonds++
			g.TotalActiveValue += b.ValueZen
		}
		if b.Market != "" {
			marketSet[b.Market] = struct{}{}
		}
	}
	g.TotalActiveValue = round2(g.TotalActiveValue)
	g.UniqueUsers = len(users)
	g.ActiveMarkets = len(marketSet)
	for m := range marketSet {
		g.MarketsList = append(g.MarketsList, m)
	}
	sort.Strings(g.MarketsList)
	if len(g.MarketsList) > 10 {
		g.MarketsList = g.MarketsList[:10]
	}
	return
}

// Merchant pairs a profile with the bonds it issued in a market. A missing
// kind 0 still shows up as an anonymous entry so its bonds stay reachable.
type Merchant struct {
	Pubkey    string          `json:"pubkey"`
	Name      string          `json:"name"`
	About     string          `json:"about"`
	Picture   string          `json:"picture"`
	Banner    string          `json:"banner"`
	Website   string          `json:"website"`
	Lud16     string          `json:"lud16"`
	Nip05     string          `json:"nip05"`
	Bonds     []*records.Bond `json:"bons"`
	BondCount int             `json:"bons_count"`
}

// MerchantDirectory lists the merchants of a market with their bonds.
type MerchantDirectory struct {
	Market         string      `json:"market_name"`
	Merchants      []*Merchant `json:"merchants"`
	TotalBonds     int         `json:"total_bons"`
	TotalMerchants int         `json:"total_merchants"`
}

// MerchantProfiles lists the kind 0 profiles on the relay.
func (s *Service) MerchantProfiles(c context.T) (
	profiles []*records.Profile, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.ProfileMetadata)
	f.Limit = values.ToUintPointer(100)
	evs, err := s.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	for _, ev := range evs {
		if p, ok := records.ParseProfile(ev); ok {
			profiles = append(profiles, p)
		}
	}
	return
}

// MerchantsWithBonds groups a market's bonds by issuer and attaches each
// issuer's profile. Bonds name their merchant in the issuer tag; the event
// pubkey is the bond's own key and only used as a fallback.
func (s *Service) MerchantsWithBonds(c context.T, market string) (
	dir *MerchantDirectory, err error,
) {
	profiles, err := s.MerchantProfiles(c)
	if chk.E(err) {
		return
	}
	byPubkey := make(map[string]*records.Profile, len(profiles))
	for _, p := range profiles {
		byPubkey[p.Pubkey] = p
	}
	bonds, err := s.Circuits.ActiveBonds(c, market, "")
	if chk.E(err) {
		return
	}
	grouped := make(map[string][]*records.Bond)
	var issuers []string
	for _, b := range bonds {
		if b.Issuer == "" {
			continue
		}
		if _, seen := grouped[b.Issuer]; !seen {
			issuers = append(issuers, b.Issuer)
		}
		grouped[b.Issuer] = append(grouped[b.Issuer], b)
	}
	sort.Strings(issuers)
	dir = &MerchantDirectory{
		Market:     market,
		Merchants:  []*Merchant{},
		TotalBonds: len(bonds),
	}
	for _, issuer := range issuers {
		m := &Merchant{
			Pubkey:    issuer,
			Name:      "Unknown merchant",
			Bonds:     grouped[issuer],
			BondCount: len(grouped[issuer]),
		}
		if p, known := byPubkey[issuer]; known {
			m.Name = p.Name
			m.About = p.About
			m.Picture = p.Picture
			m.Banner = p.Banner
			m.Website = p.Website
			m.Lud16 = p.Lud16
			m.Nip05 = p.Nip05
		}
		dir.Merchants = append(dir.Merchants, m)
	}
	dir.TotalMerchants = len(dir.Merchants)
	return
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
