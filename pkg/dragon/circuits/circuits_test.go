package circuits

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/relay/relaytest"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/context"
)

const (
	alice = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	bob   = "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

var eventSeq int

func ev(k *kind.T, pubkey string, createdAt int64, content string,
	tt ...*tag.T) *event.E {
	eventSeq++
	pk, _ := hex.Dec(pubkey)
	id, _ := hex.Dec(fmt.Sprintf("%064x", eventSeq))
	return &event.E{
		ID:        id,
		Pubkey:    pk,
		CreatedAt: timestamp.FromUnix(createdAt),
		Kind:      k,
		Tags:      tags.New(tt...),
		Content:   []byte(content),
	}
}

func bondEvent(owner, bonID, market string, value float64, issued,
	expires int64, hops int) *event.E {
	return ev(kind.Bond, owner, issued,
		fmt.Sprintf(`{"hop_count":%d}`, hops),
		tag.New("d", "zen-"+bonID),
		tag.New("market", market),
		tag.New("value", fmt.Sprintf("%g", value)),
		tag.New("expires", fmt.Sprintf("%d", expires)),
	)
}

func circuitEvent(closer, bonID, issuer, market, dest string, value,
	age float64, hops int, closedAt int64) *event.E {
	content := fmt.Sprintf(
		`{"issued_by":%q,"market_id":%q,"dest_market_id":%q,"value_zen":%g,"age_days":%g,"hop_count":%d}`,
		issuer, market, dest, value, age, hops,
	)
	return ev(kind.Circuit, closer, closedAt, content,
		tag.New("d", "circ-"+bonID),
		tag.New("bon_id", bonID),
		tag.New("market", market),
		tag.New("issued_by", issuer),
	)
}

func TestActiveBondsDropsExpired(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		bondEvent(alice, "live", "market_lyon", 10, now-86400, now+86400, 0),
		bondEvent(alice, "dead", "market_lyon", 5, now-10*86400, now-1, 0),
		bondEvent(bob, "other", "market_paris", 7, now-86400, now+86400, 0),
	)
	x := NewIndexer(r, 500, 10000)
	bonds, err := x.ActiveBonds(context.Bg(), "Lyon", "")
	require.NoError(t, err)
	require.Len(t, bonds, 1)
	assert.Equal(t, "live", bonds[0].ID)

	// owner narrows to that author's events
	bonds, err = x.ActiveBonds(context.Bg(), "paris", bob)
	require.NoError(t, err)
	require.Len(t, bonds, 1)
	assert.Equal(t, bob, bonds[0].Issuer)
}

func TestBondByIDPrefixForms(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		bondEvent(alice, "bon42", "market_lyon", 10, now-100, now+100, 1),
	)
	x := NewIndexer(r, 500, 10000)
	b, err := x.BondByID(context.Bg(), "bon42")
	require.NoError(t, err)
	require.NotNil(t, b, "bare id must find the zen- prefixed d tag")
	assert.Equal(t, "bon42", b.ID)

	b, err = x.BondByID(context.Bg(), "missing")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestMarketStats(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		bondEvent(alice, "b1", "market_lyon", 10.5, now-86400, now+86400, 0),
		bondEvent(bob, "b2", "market_lyon", 4.5, now-86400, now+86400, 1),
		circuitEvent(bob, "b3", alice, "market_lyon", "", 8, 4, 2, now-86400),
		circuitEvent(bob, "b4", alice, "market_lyon", "", 2, 6, 1, now-2*86400),
		// outside the 30 day window
		circuitEvent(bob, "b5", alice, "market_lyon", "", 9, 3, 1, now-40*86400),
	)
	x := NewIndexer(r, 500, 10000)
	s, err := x.MarketStats(context.Bg(), "lyon")
	require.NoError(t, err)
	assert.Equal(t, 2, s.ActiveBondsCount)
	assert.Equal(t, 15.0, s.ActiveBondsValue)
	assert.Equal(t, 2, s.Loops30d)
	assert.Equal(t, 5.0, s.AvgCircuitAgeDays)
	assert.Equal(t, 2, s.SkillDistribution["none"])
}

func TestIntermarketRatesSumToOne(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		circuitEvent(bob, "b1", alice, "market_lyon", "market_paris", 30, 3, 1, now-86400),
		circuitEvent(bob, "b2", alice, "market_paris", "market_lyon", 10, 2, 1, now-86400),
		// same-market circuit contributes nothing
		circuitEvent(bob, "b3", alice, "market_lyon", "market_lyon", 50, 1, 1, now-86400),
	)
	x := NewIndexer(r, 500, 10000)
	rates, err := x.IntermarketRates(context.Bg())
	require.NoError(t, err)
	require.Contains(t, rates, "market_lyon")
	require.Contains(t, rates, "market_paris")
	assert.Equal(t, 0.75, rates["market_lyon"]["market_paris"])
	assert.Equal(t, 0.25, rates["market_paris"]["market_lyon"])
	sum := rates["market_lyon"]["market_paris"] + rates["market_paris"]["market_lyon"]
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestUserCirculationStats(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		circuitEvent(bob, "b1", alice, "market_lyon", "", 10, 2, 2, now-86400),
		circuitEvent(bob, "b2", alice, "market_lyon", "", 6, 4, 4, now-2*86400),
		// another issuer's circuit does not count
		circuitEvent(alice, "b3", bob, "market_lyon", "", 99, 9, 9, now-86400),
		bondEvent(alice, "held", "market_lyon", 3, now-86400, now+4*86400, 1),
		bondEvent(alice, "fresh", "market_lyon", 2, now, now+8*86400, 0),
	)
	x := NewIndexer(r, 500, 10000)
	s, err := x.UserCirculationStats(context.Bg(), alice, "lyon")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Loops30d)
	assert.Equal(t, 16.0, s.TotalLoopedValue)
	assert.Equal(t, 3.0, s.MedianCircuitAge)
	assert.Equal(t, 3.0, s.AvgHopCount)
	assert.Equal(t, 2, s.ActiveBondsCount)
	assert.Equal(t, 1, s.InTransitCount)
	assert.Equal(t, 3.0, s.InTransitValue)
	assert.InDelta(t, 6.0, s.AvgResidualTTLDays, 0.1)
}

func TestEfficiency(t *testing.T) {
	assert.Equal(t, 2.0,
		Efficiency(&records.Circuit{ValueZen: 12, AgeDays: 3, HopCount: 2}))
	// zero age and hops clamp to one
	assert.Equal(t, 5.0, Efficiency(&records.Circuit{ValueZen: 5}))
}
