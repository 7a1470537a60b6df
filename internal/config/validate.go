package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
// Collaborator credentials are validated lazily by the collaborators
// themselves so read-only commands work without them.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		problems = append(problems, "paths.scratch_dir must not be empty")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if c.Vector.Enabled && strings.TrimSpace(c.Vector.DSN) == "" {
		problems = append(problems, "vector.dsn is required when vector.enabled is true")
	}
	if c.Bus.Enabled && strings.TrimSpace(c.Bus.URL) == "" {
		problems = append(problems, "bus.url is required when bus.enabled is true")
	}

	if c.Pipeline.RetryBaseSeconds > c.Pipeline.RetryMaxSeconds {
		problems = append(problems, "pipeline.retry_base_seconds must not exceed pipeline.retry_max_seconds")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
