package v2

// Logger is the structured logging interface used across the gateway.
// Implementations must be safe for concurrent use since tool calls run
// in parallel on the standalone server.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Fatal(msg string, err error, fields ...Field)

	// With returns a child logger that carries the given fields on every entry
	With(fields ...Field) Logger

	// Close releases the log file handle, if any
	Close() error
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}
