package openapi

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"troczen.dev/pkg/app/oracle"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

type OraclePermitsInput struct {
	Market string `query:"market" doc:"narrow to one market" required:"false"`
}

type OraclePermitsOutput struct {
	Body *OraclePermitsBody
}

type OraclePermitsBody struct {
	Success bool                 `json:"success"`
	Permits []*records.PermitDef `json:"permits"`
}

// RegisterOraclePermits implements GET /api/oracle/permits.
func (x *Operations) RegisterOraclePermits(api huma.API) {
	name := "OraclePermits"
	description := `Published permit definitions, official and community.`
	path := x.path + "/oracle/permits"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"oracle"},
			Description: description,
		}, func(ctx context.T, input *OraclePermitsInput) (
			output *OraclePermitsOutput, err error,
		) {
			if x.oracle == nil {
				return nil, huma.Error503ServiceUnavailable(
					"oracle service not configured",
				)
			}
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			defs, err := x.oracle.PermitDefinitions(ctx, input.Market)
			if err != nil {
				log.E.F("permit definitions failed: %v", err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			if defs == nil {
				defs = []*records.PermitDef{}
			}
			return &OraclePermitsOutput{
				Body: &OraclePermitsBody{Success: true, Permits: defs},
			}, nil
		},
	)
}

type OracleCredentialsInput struct {
	Npub string `path:"npub" doc:"holder public key in hex"`
}

type OracleCredentialsOutput struct {
	Body *OracleCredentialsBody
}

type OracleCredentialsBody struct {
	Success     bool                  `json:"success"`
	Credentials []*records.Credential `json:"credentials"`
}

// RegisterOracleCredentials implements GET /api/oracle/credentials/{npub}.
func (x *Operations) RegisterOracleCredentials(api huma.API) {
	name := "OracleCredentials"
	description := `Verifiable credentials this oracle issued to a user.`
	path := x.path + "/oracle/credentials/{npub}"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"oracle"},
			Description: description,
		}, func(ctx context.T, input *OracleCredentialsInput) (
			output *OracleCredentialsOutput, err error,
		) {
			if x.oracle == nil {
				return nil, huma.Error503ServiceUnavailable(
					"oracle service not configured",
				)
			}
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			creds, err := x.oracle.CredentialsFor(ctx, npub(input.Npub))
			if err != nil {
				log.E.F("credentials for %s failed: %v", input.Npub, err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			if creds == nil {
				creds = []*records.Credential{}
			}
			return &OracleCredentialsOutput{
				Body: &OracleCredentialsBody{
					Success: true, Credentials: creds,
				},
			}, nil
		},
	)
}

type OracleStatsOutput struct {
	Body *OracleStatsBody
}

type OracleStatsBody struct {
	Success bool          `json:"success"`
	Stats   *oracle.Stats `json:"stats"`
}

// RegisterOracleStats implements GET /api/oracle/stats.
func (x *Operations) RegisterOracleStats(api huma.API) {
	name := "OracleStats"
	description := `Counts of permits, requests, attestations and issued
credentials.`
	path := x.path + "/oracle/stats"

	huma.Register(
		api, huma.Operation{
			OperationID: name,
			Summary:     name,
			Path:        path,
			Method:      http.MethodGet,
			Tags:        []string{"oracle"},
			Description: description,
		}, func(ctx context.T, _ *struct{}) (
			output *OracleStatsOutput, err error,
		) {
			if x.oracle == nil {
				return nil, huma.Error503ServiceUnavailable(
					"oracle service not configured",
				)
			}
			ctx, cancel := x.reqContext(ctx)
			defer cancel()
			stats, err := x.oracle.Stats(ctx)
			if err != nil {
				log.E.F("oracle stats failed: %v", err)
				return nil, huma.Error503ServiceUnavailable(
					"relay query failed", err,
				)
			}
			return &OracleStatsOutput{
				Body: &OracleStatsBody{Success: true, Stats: stats},
			}, nil
		},
	)
}
