package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by parseEnv.
const EnvPrefix = "SHOWROOM_"

// parseEnv overlays SHOWROOM_* variables onto config. Unset variables leave
// the current values untouched.
func parseEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
