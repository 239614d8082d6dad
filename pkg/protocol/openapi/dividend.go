package openapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/dragon/du"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

type DividendInput struct {
	Npub   string `path:"npub" doc:"user public key in hex"`
	Market string `query:"market" doc:"market id" required:"false"`
}

type DividendOutput struct {
	Body *DividendBody
}

type DividendBody struct {
	Success bool       `json:"success"`
	DU      *du.Result `json:"du"`
}

// RegisterDividend implements GET /api/du/{npub}.
func (x *Operations) RegisterDividend(api huma.API) {
	name := "Dividend"
	description := `Universal dividend of a user in a market.

Computed from the reciprocal follow graph (N1/N2), the active monetary
mass of both rings, and the user's skill multiplier. Users with fewer
than five reciprocal follows get an inactive result.`
	path := x.path + "/du/{npub}"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, input *DividendInput) (
			output *DividendOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			res, err := x.dragon.CalculateDU(
				ctx, npub(input.Npub), x.market(input.Market),
			)
			if err != nil {
				log.E.F("du calculation for %s failed: %v", input.Npub, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &DividendOutput{
				Body: &DividendBody{Success: true, DU: res},
			}, nil
		},
	)
}
