package openapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/dragon/params"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

type ParamsInput struct {
	Npub   string `path:"npub" doc:"user public key in hex"`
	Market string `query:"market" doc:"market id" required:"false"`
}

type ParamsOutput struct {
	Body *ParamsBody
}

type ParamsBody struct {
	Success bool        `json:"success"`
	Params  *params.All `json:"params"`
}

// RegisterParams implements GET /api/params/{npub}.
func (x *Operations) RegisterParams(api huma.API) {
	name := "Params"
	description := `Dynamic economic parameters of a user in a market.

C² (calculated circulation coefficient), alpha (skill weighting) and the
optimal bond TTL, all derived from the user's last 30 days of circuits
and bonds. Falls back to the documented defaults when history is thin.`
	path := x.path + "/params/{npub}"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, input *ParamsInput) (
			output *ParamsOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			all, err := x.dragon.GetParams(
				ctx, npub(input.Npub), x.market(input.Market),
			)
			if err != nil {
				log.E.F("params for %s failed: %v", input.Npub, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &ParamsOutput{
				Body: &ParamsBody{Success: true, Params: all},
			}, nil
		},
	)
}
