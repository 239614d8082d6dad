// Package params computes the dynamic protocol parameters of a user in a
// market: the C² circulation coefficient, the α skill multiplier and the
// suggested bond TTL. All inputs are read from the relay at call time; there
// is no local state to corrupt or migrate.
package params

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
)

// Protocol constants. The clip bounds keep a pathological history from
// producing runaway parameters.
const (
	C2Min     = 0.02
	C2Max     = 0.25
	C2Default = 0.07

	AlphaMin     = 0.0
	AlphaMax     = 1.0
	AlphaDefault = 0.3

	TTLMin     = 7
	TTLMax     = 365
	TTLDefault = 28

	// WindowDays is the trailing analysis window.
	WindowDays = 30

	// MinSkillLoops is the smallest sample α will be estimated from.
	MinSkillLoops = 5
)

// Engine computes dynamic parameters from relay history.
type Engine struct {
	relay      relay.I
	pageSize   int
	maxResults int
}

// NewEngine wires a parameter engine to a relay connection.
func NewEngine(r relay.I, pageSize, maxResults int) *Engine {
	return &Engine{relay: r, pageSize: pageSize, maxResults: maxResults}
}

// C2Result carries C² and the intermediate metrics it was derived from.
type C2Result struct {
	C2              float64 `json:"c2"`
	MedianReturnAge float64 `json:"median_return_age"`
	MedianTTL       float64 `json:"median_ttl"`
	HealthRatio     float64 `json:"health_ratio"`
	N1Growth        float64 `json:"n1_growth"`
	LoopsCount      int     `json:"loops_count"`
	ExpiredCount    int     `json:"expired_count"`
	ComputedAt      int64   `json:"computed_at"`
}

// AlphaResult carries α and the correlation metrics behind it.
type AlphaResult struct {
	Alpha           float64 `json:"alpha"`
	SkillLoopsCount int     `json:"skill_loops_count"`
	Correlation     float64 `json:"correlation"`
	AvgSkillLevel   float64 `json:"avg_skill_level"`
	ComputedAt      int64   `json:"computed_at"`
}

// All bundles the three parameters with their detail blocks.
type All struct {
	C2           float64      `json:"c2"`
	Alpha        float64      `json:"alpha"`
	TTLOptimal   int          `json:"ttl_optimal"`
	C2Details    *C2Result    `json:"c2_details"`
	AlphaDetails *AlphaResult `json:"alpha_details"`
	ComputedAt   int64        `json:"computed_at"`
}

// C2 computes the circulation coefficient:
//
//	C² = clip(medianReturn/medianTTL · healthRatio · (1 + n1Growth), min, max)
//
// falling back to the default when the user has no return history yet.
func (e *Engine) C2(c context.T, user, market string) (r *C2Result, err error) {
	now := time.Now().Unix()
	var loops []*records.Circuit
	if loops, err = e.loops(c, user, market, now-WindowDays*86400, 0); chk.E(err) {
		return
	}
	var ages []float64
	for _, l := range loops {
		if l.AgeDays > 0 {
			ages = append(ages, l.AgeDays)
		}
	}
	medianReturn := median(ages)
	var ttls []float64
	if ttls, err = e.emittedTTLs(c, user, market, now); chk.E(err) {
		return
	}
	medianTTL := median(ttls)
	if len(ttls) == 0 {
		medianTTL = TTLDefault
	}
	var expired int
	if expired, err = e.expiredCount(c, user, market, now); chk.E(err) {
		return
	}
	healthRatio := math.Min(float64(len(loops))/math.Max(float64(expired), 0.1), 2)
	var prev []*records.Circuit
	if prev, err = e.loops(
		c, user, market, now-2*WindowDays*86400, now-WindowDays*86400,
	); chk.E(err) {
		return
	}
	growth := (float64(len(loops)) - float64(len(prev))) /
		math.Max(float64(len(prev)), 1)
	growth = math.Min(math.Max(growth, 0), 0.5)
	c2 := C2Default
	if medianReturn > 0 && medianTTL > 0 {
		c2 = clip(
			(medianReturn/medianTTL)*healthRatio*(1+growth), C2Min, C2Max,
		)
	}
	r = &C2Result{
		C2:              round(c2, 4),
		MedianReturnAge: round(medianReturn, 1),
		MedianTTL:       round(medianTTL, 1),
		HealthRatio:     round(healthRatio, 2),
		N1Growth:        round(growth, 3),
		LoopsCount:      len(loops),
		ExpiredCount:    expired,
		ComputedAt:      now,
	}
	return
}

// Alpha estimates whether skill level predicts return speed, as 0.8 times the
// Pearson correlation between circuit skill levels and negated return ages.
// Fewer than MinSkillLoops certified circuits yields the default.
func (e *Engine) Alpha(c context.T, user, market string) (
	r *AlphaResult, err error,
) {
	now := time.Now().Unix()
	var loops []*records.Circuit
	if loops, err = e.loops(c, user, market, now-WindowDays*86400, 0); chk.E(err) {
		return
	}
	var skillLoops []*records.Circuit
	for _, l := range loops {
		if l.SkillCert != "" {
			skillLoops = append(skillLoops, l)
		}
	}
	if len(skillLoops) < MinSkillLoops {
		return &AlphaResult{
			Alpha:           AlphaDefault,
			SkillLoopsCount: len(skillLoops),
			ComputedAt:      now,
		}, nil
	}
	levels := make([]float64, len(skillLoops))
	returns := make([]float64, len(skillLoops))
	var levelSum float64
	for i, l := range skillLoops {
		levels[i] = float64(l.SkillLevel())
		levelSum += levels[i]
		// negated so a fast return scores high
		returns[i] = -l.AgeDays
	}
	corr := pearson(levels, returns)
	r = &AlphaResult{
		Alpha:           round(clip(0.8*corr, AlphaMin, AlphaMax), 3),
		SkillLoopsCount: len(skillLoops),
		Correlation:     round(corr, 3),
		AvgSkillLevel:   round(levelSum/float64(len(skillLoops)), 1),
		ComputedAt:      now,
	}
	return
}

// TTLOptimal suggests a bond lifetime of one and a half median return times,
// clipped to the protocol bounds.
func (e *Engine) TTLOptimal(c context.T, user, market string) (
	ttl int, err error,
) {
	now := time.Now().Unix()
	var loops []*records.Circuit
	if loops, err = e.loops(c, user, market, now-WindowDays*86400, 0); chk.E(err) {
		return
	}
	var ages []float64
	for _, l := range loops {
		if l.AgeDays > 0 {
			ages = append(ages, l.AgeDays)
		}
	}
	medianReturn := median(ages)
	if medianReturn <= 0 {
		return TTLDefault, nil
	}
	ttl = int(clip(math.Round(1.5*medianReturn), TTLMin, TTLMax))
	return
}

// AllParams computes the three parameters together with their detail blocks.
func (e *Engine) AllParams(c context.T, user, market string) (a *All, err error) {
	var c2 *C2Result
	if c2, err = e.C2(c, user, market); chk.E(err) {
		return
	}
	var alpha *AlphaResult
	if alpha, err = e.Alpha(c, user, market); chk.E(err) {
		return
	}
	var ttl int
	if ttl, err = e.TTLOptimal(c, user, market); chk.E(err) {
		return
	}
	a = &All{
		C2:           c2.C2,
		Alpha:        alpha.Alpha,
		TTLOptimal:   ttl,
		C2Details:    c2,
		AlphaDetails: alpha,
		ComputedAt:   time.Now().Unix(),
	}
	return
}

// Defaults returns the parameter set used when relay history is unreachable.
func Defaults() *All {
	now := time.Now().Unix()
	return &All{
		C2:         C2Default,
		Alpha:      AlphaDefault,
		TTLOptimal: TTLDefault,
		ComputedAt: now,
	}
}

func (e *Engine) loops(c context.T, user, market string, since, until int64) (
	loops []*records.Circuit, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Circuit)
	f.Tags = f.Tags.AppendTags(
		tag.New("#issued_by", user),
		tag.New("#market", markets.Tag(market)),
	)
	f.Since = timestamp.FromUnix(since)
	if until > 0 {
		f.Until = timestamp.FromUnix(until)
	}
	evs, err := e.relay.QueryPaginated(c, f, e.pageSize, e.maxResults)
	if chk.E(err) {
		return
	}
	for _, ev := range evs {
		if circ, ok := records.ParseCircuit(ev); ok {
			loops = append(loops, circ)
		}
	}
	return
}

func (e *Engine) emittedBonds(c context.T, user, market string, since int64) (
	bonds []*records.Bond, err error,
) {
	var pk []byte
	if pk, err = hex.Dec(user); chk.E(err) {
		return
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.Bond)
	f.Authors = f.Authors.Append(pk)
	f.Tags = f.Tags.AppendTags(tag.New("#market", markets.Tag(market)))
	f.Since = timestamp.FromUnix(since)
	evs, err := e.relay.QueryPaginated(c, f, e.pageSize, e.maxResults)
	if chk.E(err) {
		return
	}
	for _, ev := range evs {
		if b, ok := records.ParseBond(ev); ok {
			bonds = append(bonds, b)
		}
	}
	return
}

func (e *Engine) emittedTTLs(c context.T, user, market string, now int64) (
	ttls []float64, err error,
) {
	var bonds []*records.Bond
	if bonds, err = e.emittedBonds(
		c, user, market, now-WindowDays*86400,
	); chk.E(err) {
		return
	}
	for _, b := range bonds {
		if b.ExpiresAt > b.IssuedAt {
			ttls = append(ttls, math.Floor(b.TTLDays()))
		}
	}
	return
}

// expiredCount counts the user's recent bonds that lapsed without a circuit.
// The circuit lookup is one batched #bon_id query over all expired ids rather
// than a query per bond.
func (e *Engine) expiredCount(c context.T, user, market string, now int64) (
	n int, err error,
) {
	var bonds []*records.Bond
	if bonds, err = e.emittedBonds(
		c, user, market, now-WindowDays*86400,
	); chk.E(err) {
		return
	}
	var expiredIDs []string
	for _, b := range bonds {
		if b.ExpiresAt > 0 && b.ExpiresAt < now {
			expiredIDs = append(expiredIDs, b.ID)
		}
	}
	if len(expiredIDs) == 0 {
		return 0, nil
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.Circuit)
	f.Tags = f.Tags.AppendTags(tag.New(append([]string{"#bon_id"}, expiredIDs...)...))
	evs, err := e.relay.QueryPaginated(c, f, e.pageSize, e.maxResults)
	if chk.E(err) {
		return
	}
	looped := make(map[string]struct{})
	for _, ev := range evs {
		if circ, ok := records.ParseCircuit(ev); ok {
			looped[circ.BondID] = struct{}{}
		}
	}
	for _, id := range expiredIDs {
		if _, hasCircuit := looped[id]; !hasCircuit {
			n++
		}
	}
	return
}

func clip(v, lo, hi float64) float64 { return math.Max(lo, math.Min(v, hi)) }

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

func pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 3 {
		return 0
	}
	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)
	var num, sumSqX, sumSqY float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-meanX, y[i]-meanY
		num += dx * dy
		sumSqX += dx * dx
		sumSqY += dy * dy
	}
	den := math.Sqrt(sumSqX * sumSqY)
	if den == 0 {
		return 0
	}
	return num / den
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
