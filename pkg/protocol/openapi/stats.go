package openapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/app/dragon"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

type StatsOutput struct {
	Body *StatsBody
}

type StatsBody struct {
	Success bool                `json:"success"`
	Stats   *dragon.GlobalStats `json:"stats"`
}

// RegisterStats implements GET /api/stats.
func (x *Operations) RegisterStats(api huma.API) {
	name := "Stats"
	description := `System-wide activity: active bonds and their value,
circuits, unique users and markets.`
	path := x.path + "/stats"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"dragon"},
			Description: description,
		}, func(ctx context.T, _ *struct{}) (
			output *StatsOutput, err error,
		) {
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			stats, err := x.dragon.GetGlobalStats(ctx)
			if err != nil {
				log.E.F("global stats failed: %v", err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &StatsOutput{
				Body: &StatsBody{Success: true, Stats: stats},
			}, nil
		},
	)
}
