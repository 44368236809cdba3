package config

import (
	"github.com/rshade/recbatch/internal/logging"
)

// ToLoggingConfig converts config.LoggingConfig to logging.Config.
//
// If File is set, Output becomes "file"; otherwise it defaults to "stderr".
// The "text" format is accepted as an alias for console output.
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	format := lc.Format
	if format == "text" {
		format = logging.FormatConsole
	}

	return logging.Config{
		Level:  lc.Level,
		Format: format,
		Output: output,
		File:   lc.File,
	}
}

// GetLoggingConfig returns a copy of the global configuration's Logging section.
// Flag overrides such as --debug are applied by the caller.
func GetLoggingConfig() LoggingConfig {
	return GetGlobalConfig().Logging
}
