package api

import (
	"net/http"

	"github.com/JaimeStill/docket/internal/config"
	"github.com/JaimeStill/docket/pkg/openapi"
	"github.com/JaimeStill/docket/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	groups := []routes.Group{
		domain.Ingest.Handler().Routes(),
		domain.Tasks.Handler().Routes(),
		domain.Audit.Handler().Routes(),
		domain.Assignments.Handler(domain.Audit.Handler()).Routes(),
	}

	if runtime.Storage != nil && cfg.Ingest.Source == config.IngestSourceBlob {
		groups = append(groups, newJobDocumentHandler(
			runtime.Storage,
			cfg.Ingest.BlobPrefix,
			runtime.Logger,
		).routes())
	}

	routes.Register(mux, groups...)

	spec, err := buildSpec(cfg, groups)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))

	return nil
}

func buildSpec(cfg *config.Config, groups []routes.Group) ([]byte, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	routes.Describe(spec, groups...)
	return openapi.MarshalJSON(spec)
}
