package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/app/config"
	"troczen.dev/pkg/app/dragon"
	"troczen.dev/pkg/app/oracle"
	"troczen.dev/pkg/crypto/p256k"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/relay/relaytest"
)

var eventSeq int

func testEvent(k *kind.T, author string, createdAt int64, content string,
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

func newTestRouter(t *testing.T, r *relaytest.Relay) chi.Router {
	t.Helper()
	cfg := &config.C{
		PageSize:   100,
		MaxResults: 1000,
		ServerCost: 42,
		ZenEurRate: 1,
		Market:     "market_lyon",
	}
	sign := &p256k.Signer{}
	require.NoError(t, sign.Generate())
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("troczen", "test"))
	huma.AutoRegister(api, &Operations{
		dragon:        dragon.New(r, cfg),
		oracle:        oracle.New(r, sign, cfg.PageSize, cfg.MaxResults),
		path:          "/api",
		defaultMarket: cfg.Market,
		queryTimeout:  5 * time.Second,
	})
	return router
}

func get(t *testing.T, router chi.Router, path string) (
	code int, body map[string]any,
) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	body = map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, relaytest.New())
	code, body := get(t, router, "/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "troczen", body["service"])
}

func TestDividendEndpointDefaultsMarket(t *testing.T) {
	router := newTestRouter(t, relaytest.New())
	npub := fmt.Sprintf("%064x", 0x5001)
	code, body := get(t, router, "/api/du/"+npub)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	du, ok := body["du"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, du["active"])
	assert.Equal(t, "N1 < 5", du["reason"])
}

func TestMarketHealthEndpoint(t *testing.T) {
	now := time.Now().Unix()
	owner := fmt.Sprintf("%064x", 0x5002)
	r := relaytest.New(
		testEvent(kind.Bond, owner, now-86400, "{}",
			tag.New("d", "zen-b1"),
			tag.New("market", "market_lyon"),
			tag.New("value", "10"),
			tag.New("expires", fmt.Sprintf("%d", now+86400)),
		),
	)
	router := newTestRouter(t, r)
	code, body := get(t, router, "/api/market/lyon/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	health, ok := body["health"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), health["active_bonds"])
	assert.Equal(t, "moderate", health["status"])
}

func TestOracleStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, relaytest.New())
	code, body := get(t, router, "/api/oracle/stats")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), stats["credentials_count"])
	assert.NotEmpty(t, stats["oracle_pubkey"])
}

func TestOracleEndpointsWithoutService(t *testing.T) {
	cfg := &config.C{PageSize: 100, MaxResults: 1000, Market: "market_lyon"}
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("troczen", "test"))
	huma.AutoRegister(api, &Operations{
		dragon:        dragon.New(relaytest.New(), cfg),
		path:          "/api",
		defaultMarket: cfg.Market,
	})
	code, _ := get(t, router, "/api/oracle/stats")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRatesEndpoint(t *testing.T) {
	router := newTestRouter(t, relaytest.New())
	code, body := get(t, router, "/api/rates")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, relaytest.New())
	code, body := get(t, router, "/api/stats")
	require.Equal(t, http.StatusOK, code)
	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), stats["active_bonds"])
}
