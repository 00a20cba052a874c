package config

import (
	"fmt"
	"os"
)

const (
	EnvIngestSource     = "DOCKET_INGEST_SOURCE"
	EnvIngestBlobPrefix = "DOCKET_INGEST_BLOB_PREFIX"
)

// Row sources for the task creation pipeline.
const (
	IngestSourceDatabase = "database"
	IngestSourceBlob     = "blob"
)

// IngestConfig selects where validated import rows are read from.
type IngestConfig struct {
	Source     string `toml:"source"`
	BlobPrefix string `toml:"blob_prefix"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *IngestConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *IngestConfig) Merge(overlay *IngestConfig) {
	if overlay.Source != "" {
		c.Source = overlay.Source
	}
	if overlay.BlobPrefix != "" {
		c.BlobPrefix = overlay.BlobPrefix
	}
}

func (c *IngestConfig) loadDefaults() {
	if c.Source == "" {
		c.Source = IngestSourceDatabase
	}
	if c.BlobPrefix == "" {
		c.BlobPrefix = "jobs/"
	}
}

func (c *IngestConfig) loadEnv() {
	if v := os.Getenv(EnvIngestSource); v != "" {
		c.Source = v
	}
	if v := os.Getenv(EnvIngestBlobPrefix); v != "" {
		c.BlobPrefix = v
	}
}

func (c *IngestConfig) validate() error {
	switch c.Source {
	case IngestSourceDatabase, IngestSourceBlob:
		return nil
	}
	return fmt.Errorf("invalid source %q (want %s or %s)", c.Source, IngestSourceDatabase, IngestSourceBlob)
}
