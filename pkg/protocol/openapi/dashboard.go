package openapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/dragon/dashboard"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

type DashboardInput struct {
	Npub   string `path:"npub" doc:"user public key in hex"`
	Market string `query:"market" doc:"narrow the board to one market" required:"false"`
}

type DashboardOutput struct {
	Body *DashboardBody
}

type DashboardBody struct {
	Success   bool                 `json:"success"`
	Dashboard *dashboard.Dashboard `json:"dashboard"`
}

// RegisterDashboard implements GET /api/dashboard/{npub}, the navigation
// board the mobile app renders.
func (x *Operations) RegisterDashboard(api huma.API) {
	name := "Dashboard"
	description := `Full navigation board of a user.

Aggregates the social network position, per-market dividend, dynamic
parameters, circulation stats, credentials and action signals into one
snapshot computed live from the relay.`
	path := x.path + "/dashboard/{npub}"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, input *DashboardInput) (
			output *DashboardOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			board, err := x.dragon.BuildDashboard(
				ctx, npub(input.Npub), input.Market,
			)
			if err != nil {
				log.E.F("dashboard build for %s failed: %v", input.Npub, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &DashboardOutput{
				Body: &DashboardBody{Success: true, Dashboard: board},
			}, nil
		},
	)
}
