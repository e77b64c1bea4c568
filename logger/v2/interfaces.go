package v2

// Logger is the primary logging interface used across deskagent.
// It hides the logrus backend so packages never depend on it directly.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Fatal(msg string, err error, fields ...Field)

	// With creates a child logger with preset fields.
	With(fields ...Field) Logger

	// Close releases any file handles held by the logger.
	Close() error
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value interface{}
}
