package logging

import "github.com/hupe1980/issuemesh/core"

// AuditLogger implements core.AuditSink on top of a Logger. Interaction
// records are emitted as structured info entries. Failures cannot surface:
// the sink contract is fire-and-forget and must never block core logic.
type AuditLogger struct {
	logger Logger
}

// NewAuditLogger wraps the given logger as an audit sink. A nil logger
// yields a sink that discards everything.
func NewAuditLogger(logger Logger) *AuditLogger {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &AuditLogger{logger: logger}
}

// LogInteraction emits one interaction record.
func (a *AuditLogger) LogInteraction(interactionType, content string, metadata map[string]string) {
	args := make([]any, 0, 4+2*len(metadata))
	args = append(args, "interaction_type", interactionType, "content", content)
	for k, v := range metadata {
		args = append(args, k, v)
	}
	a.logger.Info("interaction", args...)
}

var _ core.AuditSink = (*AuditLogger)(nil)
