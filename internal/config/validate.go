package config

import (
	"fmt"
	"strings"

	"edfanon/internal/services"
)

// Validate checks that the configuration is complete enough to run the
// pipeline. It collects every problem instead of stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	if c.Run.WorkspaceID == "" {
		problems = append(problems, "run.workspace_id is required")
	}
	switch c.Run.Mode {
	case ModeDiff, ModeDrain:
	default:
		problems = append(problems, fmt.Sprintf("run.mode must be %q or %q, got %q", ModeDiff, ModeDrain, c.Run.Mode))
	}
	if len(c.Run.RedactFields) != len(c.Run.RedactReplacements) {
		problems = append(problems, fmt.Sprintf(
			"run.redact_fields has %d entries but run.redact_replacements has %d",
			len(c.Run.RedactFields), len(c.Run.RedactReplacements)))
	}

	problems = append(problems, validateBucket("storage.source", c.Storage.Source)...)
	problems = append(problems, validateBucket("storage.destination", c.Storage.Destination)...)

	if c.Warehouse.Host != "" {
		if c.Warehouse.Database == "" {
			problems = append(problems, "warehouse.database is required when warehouse.host is set")
		}
		if c.Warehouse.Table == "" {
			problems = append(problems, "warehouse.table is required when warehouse.host is set")
		}
		if c.Warehouse.Port <= 0 || c.Warehouse.Port > 65535 {
			problems = append(problems, fmt.Sprintf("warehouse.port %d is out of range", c.Warehouse.Port))
		}
	}

	if c.Paths.StagingDir == "" {
		problems = append(problems, "paths.staging_dir is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", services.ErrConfiguration, strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateBucket(section string, b Bucket) []string {
	var problems []string
	if b.Endpoint == "" {
		problems = append(problems, section+".endpoint is required")
	}
	if b.Bucket == "" {
		problems = append(problems, section+".bucket is required")
	}
	if b.AccessKey == "" || b.SecretKey == "" {
		problems = append(problems, section+" requires access_key and secret_key")
	}
	return problems
}
