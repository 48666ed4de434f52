package logger

import (
	"context"

	"github.com/rlgprojects/admission/pkg/constants"
)

// noopLogger discards all log output. Used as the default before wiring and
// in tests that do not assert on logging.
type noopLogger struct{}

// NewNoopLogger creates a logger that discards everything.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (n *noopLogger) Debug(ctx context.Context, message string, fields ...Field) {}
func (n *noopLogger) Info(ctx context.Context, message string, fields ...Field)  {}
func (n *noopLogger) Warn(ctx context.Context, message string, fields ...Field)  {}
func (n *noopLogger) Error(ctx context.Context, message string, err error, fields ...Field) {
}
func (n *noopLogger) Fatal(ctx context.Context, message string, err error, fields ...Field) {
}
func (n *noopLogger) WithFields(fields ...Field) Logger         { return n }
func (n *noopLogger) WithComponent(component string) Logger     { return n }
func (n *noopLogger) SetLevel(level constants.LogLevel)         {}
