package v2

import (
	"bytes"
	"log"
)

// ToStdLogger adapts a Logger to *log.Logger for libraries that only accept
// the standard logger (mcp-go's stdio transport reports its errors this way).
// Every line written becomes one Error entry.
func ToStdLogger(l Logger, prefix string) *log.Logger {
	return log.New(&stdWriter{logger: l}, prefix, 0)
}

type stdWriter struct {
	logger Logger
}

func (w *stdWriter) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\n"))
	if msg != "" {
		w.logger.Error(msg, nil)
	}
	return len(p), nil
}
