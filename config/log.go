package config

import "strings"

// LogConfig configures the root logger.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `env:"LEVEL" envDefault:"info"`
	// Format is pretty or json
	Format string `env:"FORMAT" envDefault:"json"`
}

func (l *LogConfig) Sanitize(isDev bool) {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		l.Level = "info"
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format != "pretty" && l.Format != "json" {
		l.Format = "json"
		if isDev {
			l.Format = "pretty"
		}
	}
}
