package config

import (
	"log/slog"
	"os"
	"strings"
)

// Settings holds tool-level configuration, separate from the per
// experiment YAML document.
type Settings struct {
	// External analysis scripts
	ScriptsDir  string
	Interpreter string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// LoadSettings reads tool settings from environment variables.
func LoadSettings() Settings {
	return Settings{
		ScriptsDir:  os.Getenv("MORPHORUN_SCRIPTS"),
		Interpreter: getEnv("MORPHORUN_INTERPRETER", "python3"),

		LogFile:  os.Getenv("MORPHORUN_LOG_FILE"),
		LogLevel: parseLogLevel(getEnv("MORPHORUN_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
