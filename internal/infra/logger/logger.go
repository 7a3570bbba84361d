package logger

import (
	"os"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Services receive it by constructor
// injection; the global exists so failures before wiring completes still have
// somewhere to go.
var Log = logrus.New()

// Init applies the configured level and picks a formatter for the
// environment: JSON for aggregated production/staging logs, colored text for
// a developer terminal.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		Log.Warnf("Unknown log level %q, falling back to info.", cfg.LogLevel)
	}
	Log.SetLevel(level)

	switch cfg.Environment {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}
}

// Get returns the configured logger.
func Get() *logrus.Logger {
	return Log
}
