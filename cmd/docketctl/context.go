package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/api"
	"github.com/JaimeStill/docket/internal/config"
	"github.com/JaimeStill/docket/internal/infrastructure"
)

// commandContext lazily loads configuration and opens the store once per
// invocation.
type commandContext struct {
	configDir  *string
	jsonOutput *bool

	once   sync.Once
	config *config.Config
	infra  *infrastructure.Infrastructure
	domain *api.Domain
	err    error
}

func newCommandContext(configDir *string, jsonOutput *bool) *commandContext {
	return &commandContext{
		configDir:  configDir,
		jsonOutput: jsonOutput,
	}
}

func (c *commandContext) open() (*api.Domain, error) {
	c.once.Do(func() {
		var dir string
		if c.configDir != nil {
			dir = strings.TrimSpace(*c.configDir)
		}

		cfg, err := config.LoadDir(dir)
		if err != nil {
			c.err = fmt.Errorf("load config: %w", err)
			return
		}

		// Operator output goes to stdout; only warnings reach stderr.
		cfg.Logging.Level = "warn"

		infra, err := infrastructure.New(cfg)
		if err != nil {
			c.err = err
			return
		}

		domain, err := api.NewDomain(api.NewRuntime(cfg, infra))
		if err != nil {
			infra.Database.Connection().Close()
			c.err = err
			return
		}

		c.config = cfg
		c.infra = infra
		c.domain = domain
	})
	return c.domain, c.err
}

func (c *commandContext) withDomain(fn func(*api.Domain) error) error {
	domain, err := c.open()
	if err != nil {
		return err
	}
	return fn(domain)
}

func (c *commandContext) close() error {
	if c.infra == nil {
		return nil
	}
	return c.infra.Database.Connection().Close()
}

func (c *commandContext) json() bool {
	return c.jsonOutput != nil && *c.jsonOutput
}

// render writes v as JSON when --json is set and otherwise calls table.
func (c *commandContext) render(cmd *cobra.Command, v any, table func(w io.Writer, colorize bool) error) error {
	if c.json() {
		return writeJSON(cmd, v)
	}
	out := cmd.OutOrStdout()
	return table(out, shouldColorize(out))
}
