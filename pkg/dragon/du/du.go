// Package du computes the universal dividend of a user in a market from the
// relativistic money formula, extended with a skill multiplier:
//
//	du_base = prev + C² · (M_N1 + M_N2/√N2) / (N1 + √N2)
//	du      = du_base · (1 + α · S_i)
//
// N1 is the user's reciprocal follow set and N2 the follows of N1. The
// engine reads everything from the relay at call time and carries no state
// between calls, so each computation starts from the initial dividend.
package du

import (
	"math"
	"sort"
	"time"

	"troczen.dev/pkg/dragon/params"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/interfaces/relay"
	"troczen.dev/pkg/markets"
	"troczen.dev/pkg/permits"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/values"
)

const (
	// Initial is the universal DU(0), in zen per day.
	Initial = 10.0

	// MinN1 is the reciprocal-follow threshold below which the dividend
	// stays inactive.
	MinN1 = 5

	// massBatch bounds the authors list of one active-mass query.
	massBatch = 50
)

// InactiveReason is the reason string reported when N1 is under threshold.
const InactiveReason = "N1 < 5"

// Engine computes dividends against one relay connection.
type Engine struct {
	relay        relay.I
	params       *params.Engine
	oraclePubkey string
	pageSize     int
	maxResults   int
}

// NewEngine wires a dividend engine to a relay connection. The oracle pubkey
// scopes the skill score to credentials that key actually signed; when empty
// the skill score is always zero.
func NewEngine(
	r relay.I, p *params.Engine, oraclePubkey string, pageSize, maxResults int,
) *Engine {
	return &Engine{
		relay:        r,
		params:       p,
		oraclePubkey: oraclePubkey,
		pageSize:     pageSize,
		maxResults:   maxResults,
	}
}

// Result is the dividend with every metric that produced it. An inactive
// result carries only the network counts and the reason.
type Result struct {
	DU         float64 `json:"du"`
	DUBase     float64 `json:"du_base"`
	DUSkill    float64 `json:"du_skill"`
	DUMonthly  float64 `json:"du_monthly,omitempty"`
	C2         float64 `json:"c2,omitempty"`
	Alpha      float64 `json:"alpha,omitempty"`
	SkillScore float64 `json:"s_i,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	N1         int     `json:"n1"`
	N2         int     `json:"n2"`
	MassN1     float64 `json:"m_n1,omitempty"`
	MassN2     float64 `json:"m_n2,omitempty"`
	Active     bool    `json:"active"`
	Reason     string  `json:"reason,omitempty"`
	ComputedAt int64   `json:"computed_at,omitempty"`
}

// N1 returns the user's reciprocal follows: the p-tag values of their latest
// kind 3 whose own kind 3 lists the user back. The reverse lookup is one
// batched authors query, not one per follow.
func (e *Engine) N1(c context.T, user string) (n1 []string, err error) {
	follows, err := e.follows(c, user)
	if chk.E(err) {
		return
	}
	if len(follows) == 0 {
		return
	}
	lists, err := e.followLists(c, follows)
	if chk.E(err) {
		return
	}
	for _, f := range follows {
		back, known := lists[f]
		if !known {
			continue
		}
		if _, mutual := back[user]; mutual {
			n1 = append(n1, f)
		}
	}
	sort.Strings(n1)
	return
}

// N2 returns the second ring: the union of N1's follows, minus N1 and the
// user.
func (e *Engine) N2(c context.T, user string) (n2 []string, err error) {
	n1, err := e.N1(c, user)
	if chk.E(err) {
		return
	}
	if len(n1) == 0 {
		return
	}
	inN1 := make(map[string]struct{}, len(n1))
	for _, p := range n1 {
		inN1[p] = struct{}{}
	}
	lists, err := e.followLists(c, n1)
	if chk.E(err) {
		return
	}
	seen := make(map[string]struct{})
	for _, follows := range lists {
		for p := range follows {
			if p == user {
				continue
			}
			if _, isN1 := inN1[p]; isN1 {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			n2 = append(n2, p)
		}
	}
	sort.Strings(n2)
	return
}

// ActiveMass sums the unexpired bond value held by a set of pubkeys in a
// market, querying in batches of at most 50 authors.
func (e *Engine) ActiveMass(c context.T, pubkeys []string, market string) (
	mass float64, err error,
) {
	if len(pubkeys) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	for i := 0; i < len(pubkeys); i += massBatch {
		end := i + massBatch
		if end > len(pubkeys) {
			end = len(pubkeys)
		}
		f := filter.New()
		f.Kinds = kinds.New(kind.Bond)
		f.Tags = f.Tags.AppendTags(tag.New("#market", markets.Tag(market)))
		for _, p := range pubkeys[i:end] {
			var pk []byte
			if pk, err = hex.Dec(p); chk.E(err) {
				return
			}
			f.Authors = f.Authors.Append(pk)
		}
		var evs event.S
		if evs, err = e.relay.QueryPaginated(
			c, f, e.pageSize, e.maxResults,
		); chk.E(err) {
			return
		}
		for _, ev := range evs {
			b, ok := records.ParseBond(ev)
			if !ok {
				continue
			}
			if b.Active(now) {
				mass += b.ValueZen
			}
		}
	}
	return
}

// SkillScore is the mean permit level across the credentials the oracle
// issued to the user, zero when there are none or no oracle key is set.
func (e *Engine) SkillScore(c context.T, user string) (score float64, err error) {
	if e.oraclePubkey == "" {
		return 0, nil
	}
	var pk []byte
	if pk, err = hex.Dec(e.oraclePubkey); chk.E(err) {
		return
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.Credential)
	f.Authors = f.Authors.Append(pk)
	f.Tags = f.Tags.AppendTags(tag.New("#p", user))
	evs, err := e.relay.QueryPaginated(c, f, e.pageSize, e.maxResults)
	if chk.E(err) {
		return
	}
	if len(evs) == 0 {
		return 0, nil
	}
	var total, count float64
	for _, ev := range evs {
		cred, ok := records.ParseCredential(ev)
		if !ok {
			continue
		}
		total += float64(permits.ExtractLevel(cred.PermitID))
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return total / count, nil
}

// Calculate computes the full dividend of a user in a market. Below the N1
// threshold the dividend is inactive and zero.
func (e *Engine) Calculate(c context.T, user, market string) (
	r *Result, err error,
) {
	n1, err := e.N1(c, user)
	if chk.E(err) {
		return
	}
	n2, err := e.N2(c, user)
	if chk.E(err) {
		return
	}
	if len(n1) < MinN1 {
		return &Result{
			Reason: InactiveReason,
			N1:     len(n1),
			N2:     len(n2),
		}, nil
	}
	var massN1, massN2 float64
	if massN1, err = e.ActiveMass(c, n1, market); chk.E(err) {
		return
	}
	if massN2, err = e.ActiveMass(c, n2, market); chk.E(err) {
		return
	}
	var p *params.All
	if p, err = e.params.AllParams(c, user, market); chk.E(err) {
		return
	}
	// no persistent DU store yet, every cycle starts from the initial value
	prev := Initial
	sqN2 := math.Sqrt(math.Max(float64(len(n2)), 1))
	base := prev + p.C2*(massN1+massN2/sqN2)/(float64(len(n1))+sqN2)
	var skill float64
	if skill, err = e.SkillScore(c, user); chk.E(err) {
		return
	}
	multiplier := 1 + p.Alpha*skill
	final := base * multiplier
	r = &Result{
		DU:         round(final, 2),
		DUBase:     round(base, 2),
		DUSkill:    round(base*(multiplier-1), 2),
		DUMonthly:  round(final*30, 2),
		C2:         p.C2,
		Alpha:      p.Alpha,
		SkillScore: round(skill, 2),
		Multiplier: round(multiplier, 2),
		N1:         len(n1),
		N2:         len(n2),
		MassN1:     round(massN1, 2),
		MassN2:     round(massN2, 2),
		Active:     true,
		ComputedAt: time.Now().Unix(),
	}
	return
}

// Category buckets a daily dividend for display.
func Category(du float64) string {
	switch {
	case du < 5:
		return "starter"
	case du < 15:
		return "standard"
	case du < 30:
		return "expert"
	default:
		return "master"
	}
}

// follows returns the p-tag values of the user's latest kind 3, deduplicated.
func (e *Engine) follows(c context.T, user string) (follows []string, err error) {
	var pk []byte
	if pk, err = hex.Dec(user); chk.E(err) {
		return
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.FollowList)
	f.Authors = f.Authors.Append(pk)
	f.Limit = values.ToUintPointer(1)
	evs, err := e.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	if len(evs) == 0 {
		return
	}
	cl, ok := records.ParseContactList(evs[0])
	if !ok {
		return
	}
	return cl.Follows, nil
}

// followLists batch-queries the kind 3 of a set of pubkeys and returns each
// author's follow set. Only the newest event per author is kept.
func (e *Engine) followLists(c context.T, pubkeys []string) (
	lists map[string]map[string]struct{}, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.FollowList)
	for _, p := range pubkeys {
		var pk []byte
		if pk, err = hex.Dec(p); chk.E(err) {
			return
		}
		f.Authors = f.Authors.Append(pk)
	}
	f.Limit = values.ToUintPointer(uint(len(pubkeys)))
	evs, err := e.relay.QuerySync(c, f)
	if chk.E(err) {
		return
	}
	lists = make(map[string]map[string]struct{}, len(evs))
	for _, ev := range evs {
		cl, ok := records.ParseContactList(ev)
		if !ok {
			continue
		}
		// events come newest first, keep the first list seen per author
		if _, have := lists[cl.Author]; have {
			continue
		}
		lists[cl.Author] = cl.FollowSet()
	}
	return
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
