package log

import "context"

// Fields are structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the logging interface used by the HTTP layer and the CLI.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	// Fatal logs and terminates the process.
	Fatal(ctx context.Context, msg string, err error, fields ...Fields)
	With(fields Fields) Logger
}

// Redact shortens a secret for logging, keeping only a short prefix.
func Redact(secret string) string {
	const keep = 8
	if len(secret) <= keep {
		return "***"
	}
	return secret[:keep] + "***"
}
