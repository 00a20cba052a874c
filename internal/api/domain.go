package api

import (
	"fmt"

	"github.com/JaimeStill/docket/internal/assignments"
	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/config"
	"github.com/JaimeStill/docket/internal/infrastructure"
	"github.com/JaimeStill/docket/internal/ingest"
	"github.com/JaimeStill/docket/internal/tasks"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Audit       audit.System
	Tasks       tasks.System
	Assignments assignments.System
	Ingest      ingest.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) (*Domain, error) {
	conn := runtime.Database.Connection()
	dialect := runtime.Database.Dialect()

	auditSystem := audit.New(conn, runtime.Logger, runtime.Pagination)

	tasksSystem := tasks.New(conn, dialect, runtime.Logger, runtime.Pagination)

	assignmentsSystem := assignments.New(
		conn,
		dialect,
		runtime.Logger,
		runtime.Assignment.ClaimAttempts,
	)

	source, err := NewRowSource(&runtime.Ingest, runtime.Infrastructure)
	if err != nil {
		return nil, err
	}

	return &Domain{
		Audit:       auditSystem,
		Tasks:       tasksSystem,
		Assignments: assignmentsSystem,
		Ingest:      ingest.New(tasksSystem, source, runtime.Logger),
	}, nil
}

// NewRowSource selects the ingest row source named by cfg.
func NewRowSource(cfg *config.IngestConfig, infra *infrastructure.Infrastructure) (ingest.RowSource, error) {
	switch cfg.Source {
	case config.IngestSourceBlob:
		if infra.Storage == nil {
			return nil, fmt.Errorf("ingest source %q requires blob storage", cfg.Source)
		}
		return ingest.NewBlobSource(infra.Storage, cfg.BlobPrefix), nil
	default:
		return ingest.NewDatabaseSource(infra.Database.Connection()), nil
	}
}
