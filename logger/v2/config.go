package v2

import "io"

// Config holds configuration for creating a logger instance
type Config struct {
	// Level specifies the minimum log level (debug, info, warn, error)
	Level string

	// Format specifies the output format (text, json)
	Format string

	// Output specifies where to write logs: "stdout", "stderr", or a file path.
	// The stdio MCP transport owns stdout, so servers running in that mode
	// must log to stderr or a file.
	Output string

	// Writer overrides Output when set. Used by tests to capture entries.
	Writer io.Writer

	// EnableFile additionally tees entries into FilePath
	EnableFile bool
	FilePath   string
}

// DefaultConfig returns the default configuration: info level text logs on stderr
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
}
