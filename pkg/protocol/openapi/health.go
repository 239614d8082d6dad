package openapi

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/version"
)

type HealthOutput struct {
	Body *HealthBody
}

type HealthBody struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// RegisterHealth implements GET /health, the liveness probe. It answers
// without touching the relay.
func (x *Operations) RegisterHealth(api huma.API) {
	name := "Health"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        "/health",
			Method:      http.MethodGet,
			Tags:        []string{"system"},
			Description: "Liveness probe.",
		}, func(ctx context.T, _ *struct{}) (
			output *HealthOutput, err error,
		) {
			return &HealthOutput{
				Body: &HealthBody{
					Status:    "healthy",
					Service:   version.Name,
					Version:   version.V,
					Timestamp: time.Now().Unix(),
				},
			}, nil
		},
	)
}
