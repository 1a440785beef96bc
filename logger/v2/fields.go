package v2

import "time"

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a field holding the duration's string form (e.g. "1.5s")
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Error creates an error field
func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value type
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Secret creates a field that only shows the last four characters of a
// credential. Values of eight characters or fewer are fully masked.
func Secret(key, value string) Field {
	if len(value) <= 8 {
		return Field{Key: key, Value: "****"}
	}
	return Field{Key: key, Value: "****" + value[len(value)-4:]}
}
