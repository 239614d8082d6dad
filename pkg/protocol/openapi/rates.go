package openapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/app/dragon"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

type RatesOutput struct {
	Body *RatesBody
}

type RatesBody struct {
	Success bool `json:"success"`
	*dragon.Rates
}

// RegisterRates implements GET /api/rates.
func (x *Operations) RegisterRates(api huma.API) {
	name := "Rates"
	description := `Emergent inter-market exchange matrix, derived from the
value flows of cross-market circuits over the last 30 days. For each
market pair the two directed rates sum to one.`
	path := x.path + "/rates"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, _ *struct{}) (
			output *RatesOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			rates, err := x.dragon.GetIntermarketRates(ctx)
			if err != nil {
				log.E.F("intermarket rates failed: %v", err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &RatesOutput{
				Body: &RatesBody{Success: true, Rates: rates},
			}, nil
		},
	)
}
