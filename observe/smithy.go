package observe

import (
	"context"
	"fmt"

	"github.com/aws/smithy-go/logging"
)

// SmithyLogger adapts a Logger to the AWS SDK's logging.Logger so SDK
// clients log through the structured logger. Warn classifications log at
// warn level, everything else at debug.
type SmithyLogger struct {
	logger Logger
	ctx    context.Context
}

// NewSmithyLogger wraps logger. A nil logger discards everything.
func NewSmithyLogger(logger Logger) *SmithyLogger {
	if logger == nil {
		logger = NopLogger()
	}
	return &SmithyLogger{logger: logger, ctx: context.Background()}
}

// Logf implements logging.Logger.
func (s *SmithyLogger) Logf(classification logging.Classification, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	field := Field{Key: "source", Value: "aws-sdk"}

	switch classification {
	case logging.Warn:
		s.logger.Warn(s.ctx, msg, field)
	default:
		s.logger.Debug(s.ctx, msg, field)
	}
}

// WithContext implements logging.ContextLogger.
func (s *SmithyLogger) WithContext(ctx context.Context) logging.Logger {
	return &SmithyLogger{logger: s.logger, ctx: ctx}
}

var (
	_ logging.Logger        = (*SmithyLogger)(nil)
	_ logging.ContextLogger = (*SmithyLogger)(nil)
)
