package openapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/app/dragon"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

type MarketHealthInput struct {
	Market string `path:"market" doc:"market id"`
}

type MarketHealthOutput struct {
	Body *MarketHealthBody
}

type MarketHealthBody struct {
	Success bool                 `json:"success"`
	Health  *dragon.MarketHealth `json:"health"`
}

// RegisterMarketHealth implements GET /api/market/{market}/health.
func (x *Operations) RegisterMarketHealth(api huma.API) {
	name := "MarketHealth"
	description := `Health snapshot of one market.

Active bonds, looped value and circuit activity over the last 30 days,
graded excellent / good / moderate / needs_attention.`
	path := x.path + "/market/{market}/health"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, input *MarketHealthInput) (
			output *MarketHealthOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			h, err := x.dragon.GetMarketHealth(ctx, input.Market)
			if err != nil {
				log.E.F("market health for %s failed: %v", input.Market, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &MarketHealthOutput{
				Body: &MarketHealthBody{Success: true, Health: h},
			}, nil
		},
	)
}

type MarketCircuitsInput struct {
	Market string `path:"market" doc:"market id"`
	Page   int    `query:"page" doc:"page number" required:"false"`
	Limit  int    `query:"limit" doc:"results per page" required:"false"`
}

type MarketCircuitsOutput struct {
	Body *MarketCircuitsBody
}

type MarketCircuitsBody struct {
	Success bool `json:"success"`
	*dragon.CircuitPage
}

// RegisterMarketCircuits implements GET /api/market/{market}/circuits.
func (x *Operations) RegisterMarketCircuits(api huma.API) {
	name := "MarketCircuits"
	description := `Closed circuits of a market, newest first.`
	path := x.path + "/market/{market}/circuits"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, input *MarketCircuitsInput) (
			output *MarketCircuitsOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			page, err := x.dragon.GetCircuits(
				ctx, input.Market, input.Page, input.Limit,
			)
			if err != nil {
				log.E.F("circuits for %s failed: %v", input.Market, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &MarketCircuitsOutput{
				Body: &MarketCircuitsBody{Success: true, CircuitPage: page},
			}, nil
		},
	)
}

type MarketMerchantsInput struct {
	Market string `path:"market" doc:"market id"`
}

type MarketMerchantsOutput struct {
	Body *MarketMerchantsBody
}

type MarketMerchantsBody struct {
	Success bool `json:"success"`
	*dragon.MerchantDirectory
}

// RegisterMarketMerchants implements GET /api/market/{market}/merchants.
func (x *Operations) RegisterMarketMerchants(api huma.API) {
	name := "MarketMerchants"
	description := `Merchants of a market with their active bonds, matched
to kind 0 profiles through the bond issuer tag.`
	path := x.path + "/market/{market}/merchants"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, input *MarketMerchantsInput) (
			output *MarketMerchantsOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			dir, err := x.dragon.MerchantsWithBonds(ctx, input.Market)
			if err != nil {
				log.E.F("merchants for %s failed: %v", input.Market, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &MarketMerchantsOutput{
				Body: &MarketMerchantsBody{
					Success: true, MerchantDirectory: dir,
				},
			}, nil
		},
	)
}

type MarketPAFInput struct {
	Market string `path:"market" doc:"market id"`
}

type MarketPAFOutput struct {
	Body *MarketPAFBody
}

type MarketPAFBody struct {
	Success bool        `json:"success"`
	PAF     *dragon.PAF `json:"paf"`
}

// RegisterMarketPAF implements GET /api/market/{market}/paf.
func (x *Operations) RegisterMarketPAF(api huma.API) {
	name := "MarketPAF"
	description := `Infrastructure cost share (participation aux frais) per
estimated active user of a market, in zen and euro.`
	path := x.path + "/market/{market}/paf"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, input *MarketPAFInput) (
			output *MarketPAFOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			paf, err := x.dragon.CalculatePAF(ctx, input.Market)
			if err != nil {
				log.E.F("paf for %s failed: %v", input.Market, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &MarketPAFOutput{
				Body: &MarketPAFBody{Success: true, PAF: paf},
			}, nil
		},
	)
}
