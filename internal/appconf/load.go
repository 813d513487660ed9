package appconf

// Resolve builds a configuration from defaults, the optional config file and
// the environment, in that order. The result is not validated, so callers can
// still apply flags before calling Validate.
func Resolve(configPath string, lookup LookupFunc) (Config, error) {
	cfg := Default()

	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return cfg, &ConfigError{Field: "config file", Err: err}
		}
		cfg = fc.ApplyTo(cfg)
	}

	return ApplyEnv(cfg, lookup)
}
