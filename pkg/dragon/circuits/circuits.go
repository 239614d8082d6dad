// Package circuits indexes bonds (kind 30303) and closed circuits (kind
// 30304) on the relay. The indexer is stateless: every call runs its own
// relay query and derives metrics on the fly, so restarting a service never
// loses anything.
package circuits

import (
	"math"
	"sort"
	"time"

	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/relay"
	"troczen.dev/pkg/markets"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/values"
)

// Window is the trailing period over which circulation metrics are computed.
const Window = 30 * 86400

// DefaultCircuitLimit bounds a circuit listing when the caller does not give
// its own limit.
const DefaultCircuitLimit = 100

// Indexer runs bond and circuit queries against one relay connection.
type Indexer struct {
	relay      relay.I
	pageSize   int
	maxResults int
}

// NewIndexer wires an indexer to a relay connection with the given
// pagination settings.
func NewIndexer(r relay.I, pageSize, maxResults int) *Indexer {
	return &Indexer{relay: r, pageSize: pageSize, maxResults: maxResults}
}

// MarketStats is the 30-day activity picture of one market.
type MarketStats struct {
	Market            string         `json:"market_id"`
	ActiveBondsCount  int            `json:"active_bonds_count"`
	ActiveBondsValue  float64        `json:"active_bonds_value"`
	Loops30d          int            `json:"loops_30d"`
	AvgCircuitAgeDays float64        `json:"avg_circuit_age_days"`
	SkillDistribution map[string]int `json:"skill_distribution"`
	HealthRatio       float64        `json:"health_ratio"`
	ComputedAt        int64          `json:"computed_at"`
}

// CirculationStats is one user's 30-day circulation picture in one market.
type CirculationStats struct {
	User               string  `json:"user_pubkey"`
	Market             string  `json:"market_id"`
	Loops30d           int     `json:"loops_30d"`
	TotalLoopedValue   float64 `json:"total_looped_value"`
	MedianCircuitAge   float64 `json:"median_circuit_age_days"`
	AvgHopCount        float64 `json:"avg_hop_count"`
	ActiveBondsCount   int     `json:"active_bonds_count"`
	InTransitCount     int     `json:"in_transit_count"`
	InTransitValue     float64 `json:"in_transit_value"`
	AvgResidualTTLDays float64 `json:"avg_residual_ttl_days"`
	ComputedAt         int64   `json:"computed_at"`
}

// ActiveBonds returns the unexpired bonds of a market, optionally narrowed to
// one owner's events. The market name is normalized to its tag form before
// querying.
func (x *Indexer) ActiveBonds(c context.T, market, owner string) (
	bonds []*records.Bond, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Bond)
	f.Tags = f.Tags.AppendTags(tag.New("#market", markets.Tag(market)))
	if owner != "" {
		var pk []byte
		if pk, err = hex.Dec(owner); chk.E(err) {
			return
		}
		f.Authors = f.Authors.Append(pk)
	}
	evs, err := x.relay.QueryPaginated(c, f, x.pageSize, x.maxResults)
	if chk.E(err) {
		return
	}
	now := time.Now().Unix()
	for _, ev := range evs {
		b, ok := records.ParseBond(ev)
		if !ok {
			continue
		}
		if b.Active(now) {
			bonds = append(bonds, b)
		}
	}
	return
}

// BondByID fetches one bond by its d tag, trying both the bare id and the
// zen- prefixed form publishers use. Returns nil when the relay holds no such
// bond.
func (x *Indexer) BondByID(c context.T, id string) (b *records.Bond, err error) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Bond)
	f.Tags = f.Tags.AppendTags(tag.New("#d", id, records.BondIDPrefix+id))
	f.Limit = values.ToUintPointer(1)
	evs, err := x.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	if len(evs) == 0 {
		return nil, nil
	}
	b, _ = records.ParseBond(evs[0])
	return
}

// Circuits returns the closed circuits of a market, optionally narrowed by
// original issuer and by a minimum close time. A zero limit applies
// DefaultCircuitLimit.
func (x *Indexer) Circuits(
	c context.T, market, issuer string, since int64, limit uint,
) (cc []*records.Circuit, err error) {
	if limit == 0 {
		limit = DefaultCircuitLimit
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.Circuit)
	f.Tags = f.Tags.AppendTags(tag.New("#market", markets.Tag(market)))
	if issuer != "" {
		f.Tags = f.Tags.AppendTags(tag.New("#issued_by", issuer))
	}
	if since > 0 {
		f.Since = timestamp.FromUnix(since)
	}
	f.Limit = values.ToUintPointer(limit)
	evs, err := x.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	for _, ev := range evs {
		if circ, ok := records.ParseCircuit(ev); ok {
			cc = append(cc, circ)
		}
	}
	return
}

// CircuitByBondID fetches the circuit that closed a specific bond, nil when
// the bond never looped.
func (x *Indexer) CircuitByBondID(c context.T, bonID string) (
	circ *records.Circuit, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Circuit)
	f.Tags = f.Tags.AppendTags(tag.New("#bon_id", bonID))
	f.Limit = values.ToUintPointer(1)
	evs, err := x.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	if len(evs) == 0 {
		return nil, nil
	}
	circ, _ = records.ParseCircuit(evs[0])
	return
}

// Stats computes the 30-day activity metrics of one market. The health ratio
// here is a flat placeholder; the parameter engine computes the real
// loop-to-expiry ratio per user.
func (x *Indexer) MarketStats(c context.T, market string) (s *MarketStats, err error) {
	now := time.Now().Unix()
	var bonds []*records.Bond
	if bonds, err = x.ActiveBonds(c, market, ""); chk.E(err) {
		return
	}
	var cc []*records.Circuit
	if cc, err = x.Circuits(c, market, "", now-Window, 0); chk.E(err) {
		return
	}
	s = &MarketStats{
		Market:            market,
		ActiveBondsCount:  len(bonds),
		Loops30d:          len(cc),
		SkillDistribution: make(map[string]int),
		HealthRatio:       1.0,
		ComputedAt:        now,
	}
	for _, b := range bonds {
		s.ActiveBondsValue += b.ValueZen
	}
	s.ActiveBondsValue = round(s.ActiveBondsValue, 2)
	var ages []float64
	for _, circ := range cc {
		if circ.AgeDays > 0 {
			ages = append(ages, circ.AgeDays)
		}
		cert := circ.SkillCert
		if cert == "" {
			cert = "none"
		}
		s.SkillDistribution[cert]++
	}
	s.AvgCircuitAgeDays = round(mean(ages), 1)
	return
}

// IntermarketRates derives emergent exchange rates between market pairs from
// the cross-market circuits of the last 30 days. For each unordered pair the
// two directed rates sum to one; pairs with no flow are omitted.
func (x *Indexer) IntermarketRates(c context.T) (
	rates map[string]map[string]float64, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Circuit)
	f.Since = timestamp.FromUnix(time.Now().Unix() - Window)
	f.Limit = values.ToUintPointer(1000)
	evs, err := x.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	type flow struct{ aToB, bToA float64 }
	flows := make(map[[2]string]*flow)
	for _, ev := range evs {
		circ, ok := records.ParseCircuit(ev)
		if !ok || circ.DestMarket == "" || circ.DestMarket == circ.Market {
			continue
		}
		a, b := circ.Market, circ.DestMarket
		if a > b {
			a, b = b, a
		}
		key := [2]string{a, b}
		if flows[key] == nil {
			flows[key] = &flow{}
		}
		if circ.Market == a {
			flows[key].aToB += circ.ValueZen
		} else {
			flows[key].bToA += circ.ValueZen
		}
	}
	rates = make(map[string]map[string]float64)
	for key, fl := range flows {
		total := fl.aToB + fl.bToA
		if total == 0 {
			continue
		}
		a, b := key[0], key[1]
		rate := fl.aToB / total
		if rates[a] == nil {
			rates[a] = make(map[string]float64)
		}
		if rates[b] == nil {
			rates[b] = make(map[string]float64)
		}
		rates[a][b] = round(rate, 3)
		rates[b][a] = round(1-rate, 3)
	}
	return
}

// UserStats computes one user's 30-day circulation picture in a market:
// loops they originated, value looped, and the state of the bonds they still
// hold.
func (x *Indexer) UserCirculationStats(c context.T, user, market string) (
	s *CirculationStats, err error,
) {
	now := time.Now().Unix()
	var cc []*records.Circuit
	if cc, err = x.Circuits(c, market, user, now-Window, 0); chk.E(err) {
		return
	}
	var bonds []*records.Bond
	if bonds, err = x.ActiveBonds(c, market, user); chk.E(err) {
		return
	}
	s = &CirculationStats{
		User:             user,
		Market:           market,
		Loops30d:         len(cc),
		ActiveBondsCount: len(bonds),
		ComputedAt:       now,
	}
	var ages, hops []float64
	for _, circ := range cc {
		s.TotalLoopedValue += circ.ValueZen
		if circ.AgeDays > 0 {
			ages = append(ages, circ.AgeDays)
		}
		hops = append(hops, float64(circ.HopCount))
	}
	s.TotalLoopedValue = round(s.TotalLoopedValue, 2)
	s.MedianCircuitAge = round(median(ages), 1)
	s.AvgHopCount = round(mean(hops), 1)
	var residuals []float64
	for _, b := range bonds {
		if b.InTransit() {
			s.InTransitCount++
			s.InTransitValue += b.ValueZen
		}
		if r := b.ResidualDays(now); r > 0 {
			residuals = append(residuals, r)
		}
	}
	s.InTransitValue = round(s.InTransitValue, 2)
	s.AvgResidualTTLDays = round(mean(residuals), 1)
	return
}

// Efficiency scores a circuit as value over age times hops. Higher means the
// value came back faster through fewer hands.
func Efficiency(c *records.Circuit) float64 {
	age := math.Max(c.AgeDays, 1)
	hops := math.Max(float64(c.HopCount), 1)
	return c.ValueZen / (age * hops)
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := make([]float64, len(v))
	copy(s, v)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
