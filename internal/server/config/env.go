package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays LINKKEEPER_* environment variables onto config. Unset
// variables leave the current value in place. Malformed values panic, the
// same way a malformed JSON file does.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}
