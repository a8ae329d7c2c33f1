package fetch

import (
	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"
)

// retryLogger reports retryablehttp events through logr. Retry warnings and
// give-up errors show at the default level; request tracing needs V(1).
type retryLogger struct {
	log logr.Logger
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func (l retryLogger) Error(msg string, kv ...any) {
	l.log.Info(msg, append(kv, "retry", "error")...)
}

func (l retryLogger) Warn(msg string, kv ...any) {
	l.log.Info(msg, append(kv, "retry", "warn")...)
}

func (l retryLogger) Info(msg string, kv ...any) {
	l.log.V(1).Info(msg, kv...)
}

func (l retryLogger) Debug(msg string, kv ...any) {
	l.log.V(1).Info(msg, kv...)
}
