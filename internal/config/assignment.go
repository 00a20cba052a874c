package config

import (
	"fmt"
	"os"
	"strconv"
)

const EnvAssignmentClaimAttempts = "DOCKET_ASSIGNMENT_CLAIM_ATTEMPTS"

// AssignmentConfig tunes the assignment engine.
type AssignmentConfig struct {
	// ClaimAttempts bounds how often a pull-queue claim retries after losing
	// a race for the same task.
	ClaimAttempts int `toml:"claim_attempts"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AssignmentConfig) Finalize() error {
	if c.ClaimAttempts == 0 {
		c.ClaimAttempts = 3
	}
	if v := os.Getenv(EnvAssignmentClaimAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ClaimAttempts = n
		}
	}
	if c.ClaimAttempts < 1 {
		return fmt.Errorf("claim_attempts must be at least 1, got %d", c.ClaimAttempts)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *AssignmentConfig) Merge(overlay *AssignmentConfig) {
	if overlay.ClaimAttempts != 0 {
		c.ClaimAttempts = overlay.ClaimAttempts
	}
}
