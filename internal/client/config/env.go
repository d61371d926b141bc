package config

const (
	envServerURL   = "NOTEKEEPER_SERVER"
	envSessionFile = "NOTEKEEPER_SESSION_FILE"
)

func parseEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(envServerURL); ok && v != "" {
		cfg.ServerURL = v
	}
	if v, ok := lookup(envSessionFile); ok && v != "" {
		cfg.SessionFile = v
	}
}
