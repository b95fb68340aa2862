package config

import "github.com/caarlos0/env/v11"

// EnvPrefix is prepended to every variable name in Config's env tags.
const EnvPrefix = "GOPHDATA_"

// parseEnv overlays variables that are set. Unset ones leave the field
// untouched.
func parseEnv(config *Config) error {
	return env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix})
}
