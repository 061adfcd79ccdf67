package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration is usable for the given mode.
// Modes: "pipeline" (agent-backed commands), "store" (store-only commands),
// "serve" (HTTP API). Store-only commands don't need API credentials.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	checkStore := func() {
		check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
			"store.driver must be sqlite or postgres")
		check(c.Store.DatabaseURL != "", "store.database_url is required")
	}

	checkPipeline := func() {
		check(c.Anthropic.Key != "", "anthropic.key is required")
		check(c.Pipeline.MaxConcurrentListings >= 1 && c.Pipeline.MaxConcurrentListings <= 50,
			"pipeline.max_concurrent_listings must be between 1 and 50")
		check(c.Anthropic.MaxTokens > 0, "anthropic.max_tokens must be > 0")
	}

	switch mode {
	case "store":
		checkStore()
	case "pipeline":
		checkStore()
		checkPipeline()
	case "serve":
		checkStore()
		checkPipeline()
		check(c.Server.Port > 0, "server.port must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
