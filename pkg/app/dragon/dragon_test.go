package dragon

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/app/config"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/relay/relaytest"
	"troczen.dev/pkg/utils/context"
)

func pubkey(i int) string { return fmt.Sprintf("%064x", 0x4000+i) }

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

func bondEvent(owner, issuer, bonID, market string, value float64,
	expires int64) *event.E {
	issued := time.Now().Unix() - 86400
	return ev(kind.Bond, owner, issued, "{}",
		tag.New("d", "zen-"+bonID),
		tag.New("issuer", issuer),
		tag.New("market", market),
		tag.New("value", fmt.Sprintf("%g", value)),
		tag.New("expires", fmt.Sprintf("%d", expires)),
	)
}

func circuitEvent(closer, bonID, market string, value float64) *event.E {
	content := fmt.Sprintf(
		`{"market_id":%q,"value_zen":%g,"age_days":10,"hop_count":3}`,
		market, value,
	)
	return ev(kind.Circuit, closer, time.Now().Unix()-3600, content,
		tag.New("d", "circ-"+bonID),
		tag.New("bon_id", bonID),
		tag.New("market", market),
	)
}

func profileEvent(author, name string) *event.E {
	return ev(kind.ProfileMetadata, author, 1000,
		fmt.Sprintf(`{"name":%q,"about":"stall"}`, name),
	)
}

func testConfig() *config.C {
	return &config.C{
		PageSize:   100,
		MaxResults: 1000,
		ServerCost: 42,
		ZenEurRate: 1,
		Market:     "market_hackathon",
	}
}

func TestHealthStatusGrades(t *testing.T) {
	assert.Equal(t, "excellent", healthStatus(1.5, 10))
	assert.Equal(t, "good", healthStatus(1.2, 5))
	assert.Equal(t, "good", healthStatus(1.6, 7))
	assert.Equal(t, "moderate", healthStatus(0.5, 0))
	assert.Equal(t, "moderate", healthStatus(1.4, 2))
	assert.Equal(t, "needs_attention", healthStatus(0.4, 20))
}

func TestGetMarketHealth(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		bondEvent(pubkey(1), pubkey(1), "b1", "market_lyon", 10, now+86400),
		bondEvent(pubkey(2), pubkey(2), "b2", "market_lyon", 5, now+86400),
		circuitEvent(pubkey(1), "b1", "market_lyon", 10),
		circuitEvent(pubkey(2), "b2", "market_lyon", 5),
		circuitEvent(pubkey(3), "b3", "market_lyon", 7),
		circuitEvent(pubkey(4), "b4", "market_lyon", 2),
		circuitEvent(pubkey(5), "b5", "market_lyon", 4),
	)
	svc := New(r, testConfig())

	h, err := svc.GetMarketHealth(context.Bg(), "lyon")
	require.NoError(t, err)
	assert.Equal(t, 2, h.ActiveBonds)
	assert.Equal(t, 15.0, h.ActiveValue)
	assert.Equal(t, 5, h.Loops30d)
	assert.Equal(t, "good", h.Status)
}

func TestCalculatePAF(t *testing.T) {
	now := time.Now().Unix()
	var evs []*event.E
	for i := 0; i < 7; i++ {
		evs = append(evs, bondEvent(
			pubkey(i), pubkey(i), fmt.Sprintf("b%d", i), "market_lyon",
			10, now+86400,
		))
	}
	r := relaytest.New(evs...)
	cfg := testConfig()
	cfg.ZenEurRate = 2
	svc := New(r, cfg)

	paf, err := svc.CalculatePAF(context.Bg(), "lyon")
	require.NoError(t, err)
	// 7 bonds, ~3 per user, floor to 2 users
	assert.Equal(t, 2, paf.EstimatedUsers)
	assert.Equal(t, 21.0, paf.MonthlyPafEur)
	assert.Equal(t, 10.5, paf.MonthlyPafZen)
	assert.Equal(t, 42.0, paf.InfrastructureCost)
}

func TestCalculatePAFEmptyMarket(t *testing.T) {
	r := relaytest.New()
	svc := New(r, testConfig())

	paf, err := svc.CalculatePAF(context.Bg(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 1, paf.EstimatedUsers, "at least one payer")
	assert.Equal(t, 42.0, paf.MonthlyPafEur)
}

func TestGetGlobalStats(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		bondEvent(pubkey(1), pubkey(1), "b1", "market_lyon", 10, now+86400),
		bondEvent(pubkey(1), pubkey(1), "b2", "market_paris", 20, now+86400),
		bondEvent(pubkey(2), pubkey(2), "b3", "market_lyon", 99, now-1),
		circuitEvent(pubkey(1), "b1", "market_lyon", 10),
	)
	svc := New(r, testConfig())

	g, err := svc.GetGlobalStats(context.Bg())
	require.NoError(t, err)
	assert.Equal(t, 2, g.ActiveBonds)
	assert.Equal(t, 30.0, g.TotalActiveValue)
	assert.Equal(t, 1, g.TotalCircuits)
	assert.Equal(t, 2, g.UniqueUsers)
	assert.Equal(t, 2, g.ActiveMarkets)
	assert.Equal(t, []string{"market_lyon", "market_paris"}, g.MarketsList)
}

func TestGetCircuitsPage(t *testing.T) {
	r := relaytest.New(
		circuitEvent(pubkey(1), "b1", "market_lyon", 10),
		circuitEvent(pubkey(2), "b2", "market_lyon", 5),
	)
	svc := New(r, testConfig())

	page, err := svc.GetCircuits(context.Bg(), "lyon", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 2, page.Count)
	assert.Len(t, page.Circuits, 2)
}

func TestMerchantsWithBonds(t *testing.T) {
	now := time.Now().Unix()
	known := pubkey(1)
	unknown := pubkey(2)
	r := relaytest.New(
		profileEvent(known, "Ferme du Soleil"),
		bondEvent(pubkey(10), known, "b1", "market_lyon", 10, now+86400),
		bondEvent(pubkey(11), known, "b2", "market_lyon", 5, now+86400),
		bondEvent(pubkey(12), unknown, "b3", "market_lyon", 7, now+86400),
	)
	svc := New(r, testConfig())

	dir, err := svc.MerchantsWithBonds(context.Bg(), "lyon")
	require.NoError(t, err)
	assert.Equal(t, 3, dir.TotalBonds)
	require.Equal(t, 2, dir.TotalMerchants)

	byPubkey := map[string]*Merchant{}
	for _, m := range dir.Merchants {
		byPubkey[m.Pubkey] = m
	}
	require.Contains(t, byPubkey, known)
	assert.Equal(t, "Ferme du Soleil", byPubkey[known].Name)
	assert.Equal(t, 2, byPubkey[known].BondCount)
	require.Contains(t, byPubkey, unknown)
	assert.Equal(t, "Unknown merchant", byPubkey[unknown].Name)
	assert.Equal(t, 1, byPubkey[unknown].BondCount)
}

func TestGetIntermarketRates(t *testing.T) {
	mk := func(bonID, market, dest string, value float64) *event.E {
		content := fmt.Sprintf(
			`{"market_id":%q,"dest_market_id":%q,"value_zen":%g,"age_days":5,"hop_count":2}`,
			market, dest, value,
		)
		return ev(kind.Circuit, pubkey(1), time.Now().Unix()-3600, content,
			tag.New("d", "circ-"+bonID),
			tag.New("bon_id", bonID),
			tag.New("market", market),
		)
	}
	r := relaytest.New(
		mk("b1", "market_a", "market_b", 30),
		mk("b2", "market_b", "market_a", 10),
	)
	svc := New(r, testConfig())

	rates, err := svc.GetIntermarketRates(context.Bg())
	require.NoError(t, err)
	require.Contains(t, rates.Rates, "market_a")
	assert.InDelta(t, 0.75, rates.Rates["market_a"]["market_b"], 1e-6)
	assert.InDelta(t, 0.25, rates.Rates["market_b"]["market_a"], 1e-6)
	assert.NotEmpty(t, rates.Note)
}
