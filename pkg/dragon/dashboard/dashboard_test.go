package dashboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/dragon/circuits"
	"troczen.dev/pkg/dragon/du"
	"troczen.dev/pkg/dragon/params"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/relay/relaytest"
	"troczen.dev/pkg/utils/context"
)

func pubkey(i int) string { return fmt.Sprintf("%064x", 0x2000+i) }

var (
	user   = pubkey(0)
	oracle = pubkey(999)
)

var eventSeq int

func ev(k *kind.T, author string, createdAt int64, content string,
	tt ...*tag.T) *event.E {
	eventSeq++
	pk, _ := hex.Dec(author)
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

func followList(author string, follows ...string) *event.E {
	var tt []*tag.T
	for _, f := range follows {
		tt = append(tt, tag.New("p", f))
	}
	return ev(kind.FollowList, author, 100, "", tt...)
}

func bond(author, bonID, market string, value float64, expires int64) *event.E {
	return ev(kind.Bond, author, time.Now().Unix()-86400, "{}",
		tag.New("d", bonID),
		tag.New("market", market),
		tag.New("value", fmt.Sprintf("%g", value)),
		tag.New("expires", fmt.Sprintf("%d", expires)),
	)
}

func credential(holder, permitID string, level int) *event.E {
	return ev(kind.Credential, oracle, time.Now().Unix()-86400, "{}",
		tag.New("d", "vc_"+permitID),
		tag.New("permit_id", permitID),
		tag.New("p", holder),
		tag.New("level", fmt.Sprintf("%d", level)),
		tag.New("expires", "9999999999"),
	)
}

func newBuilder(r *relaytest.Relay) *Builder {
	p := params.NewEngine(r, 500, 10000)
	d := du.NewEngine(r, p, oracle, 500, 10000)
	x := circuits.NewIndexer(r, 500, 10000)
	return NewBuilder(
		r, p, d, x, oracle, "market_hackathon", DefaultThresholds(),
	)
}

func TestNetworkCategory(t *testing.T) {
	assert.Equal(t, "Starter", NetworkCategory(1, 0))
	assert.Equal(t, "Emergent", NetworkCategory(2, 0))
	assert.Equal(t, "Actif", NetworkCategory(5, 10))
	assert.Equal(t, "Actif", NetworkCategory(10, 49))
	assert.Equal(t, "Tisseur", NetworkCategory(10, 50))
}

func TestBuildDefaultsToFallbackMarket(t *testing.T) {
	b := newBuilder(relaytest.New())
	d, err := b.Build(context.Bg(), user, "")
	require.NoError(t, err)
	require.Len(t, d.Markets, 1)
	assert.Equal(t, "market_hackathon", d.Markets[0].Market)
	assert.Equal(t, "Starter", d.Network.Category)
	assert.False(t, d.Markets[0].DU.Active)
	assert.Equal(t, 1.0, d.Markets[0].DU.Multiplier)
	assert.Equal(t, 0, d.Summary.ActiveMarkets)
}

func TestBuildListsUserMarkets(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		bond(user, "b1", "market_lyon", 10, now+86400),
		bond(user, "b2", "market_paris", 5, now+86400),
	)
	b := newBuilder(r)
	d, err := b.Build(context.Bg(), user, "")
	require.NoError(t, err)
	require.Len(t, d.Markets, 2)
	assert.Equal(t, "market_lyon", d.Markets[0].Market)
	assert.Equal(t, "market_paris", d.Markets[1].Market)

	// narrowing to one market keeps only that block
	d, err = b.Build(context.Bg(), user, "market_paris")
	require.NoError(t, err)
	require.Len(t, d.Markets, 1)
	assert.Equal(t, "market_paris", d.Markets[0].Market)
}

func TestBuildCredentialsBlock(t *testing.T) {
	now := time.Now().Unix()
	evs := []*event.E{bond(user, "b1", "market_lyon", 10, now+86400)}
	for i := 0; i < 7; i++ {
		evs = append(evs,
			credential(user, fmt.Sprintf("PERMIT_P%d_X1", i), 1))
	}
	b := newBuilder(relaytest.New(evs...))
	d, err := b.Build(context.Bg(), user, "")
	require.NoError(t, err)
	cb := d.Markets[0].Credentials
	assert.Equal(t, 7, cb.Count)
	assert.Len(t, cb.List, 5, "dashboard shows at most five credentials")
}

func TestSignalsDefaultStable(t *testing.T) {
	b := newBuilder(relaytest.New())
	p := &params.All{
		C2:         0.07,
		Alpha:      0.3,
		TTLOptimal: 28,
		C2Details:  &params.C2Result{HealthRatio: 1.2},
	}
	duRes := &du.Result{Active: true, DU: 12}
	circ := &circuits.CirculationStats{Loops30d: 3}
	signals := b.signals(p, duRes, circ)
	require.Len(t, signals, 1)
	assert.Contains(t, signals[0], "stable")
}

func TestSignalsTriggers(t *testing.T) {
	b := newBuilder(relaytest.New())
	p := &params.All{
		C2:         0.2,
		Alpha:      0.6,
		TTLOptimal: 10,
		C2Details:  &params.C2Result{HealthRatio: 0.4},
	}
	duRes := &du.Result{Active: true, DU: 25}
	circ := &circuits.CirculationStats{Loops30d: 12}
	signals := b.signals(p, duRes, circ)
	assert.Len(t, signals, 6)
}

func TestSummaryTotals(t *testing.T) {
	n := &Network{Category: "Actif"}
	blocks := []*MarketBlock{
		{
			DU:          DUBlock{Daily: 10.5, Active: true},
			Circulation: CirculationBlock{LoopsThisMonth: 4},
		},
		{
			DU:          DUBlock{Daily: 0, Active: false},
			Circulation: CirculationBlock{LoopsThisMonth: 1},
		},
	}
	s := summarize(n, blocks)
	assert.Equal(t, 10.5, s.TotalDUDaily)
	assert.Equal(t, 315.0, s.TotalDUMonthly)
	assert.Equal(t, 5, s.TotalLoops30d)
	assert.Equal(t, 1, s.ActiveMarkets)
	assert.Equal(t, "Actif", s.NetworkCategory)
}

func TestTextRendering(t *testing.T) {
	b := newBuilder(relaytest.New())
	d, err := b.Build(context.Bg(), user, "")
	require.NoError(t, err)
	out := Text(d)
	assert.Contains(t, out, "NAVIGATION BOARD")
	assert.Contains(t, out, "MARKET: market_hackathon")
	assert.Contains(t, out, "DU: Inactive")
	assert.Contains(t, out, "SUMMARY")
}
