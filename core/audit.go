package core

// AuditSink receives fire-and-forget interaction records. The engine calls
// LogInteraction after every turn and every handoff/fallback event but never
// blocks core logic on its success; implementations must not return errors
// and should degrade silently.
type AuditSink interface {
	LogInteraction(interactionType, content string, metadata map[string]string)
}

// NoOpAuditSink discards all interaction records. Useful for tests or when
// auditing is disabled.
type NoOpAuditSink struct{}

// LogInteraction discards the record.
func (NoOpAuditSink) LogInteraction(string, string, map[string]string) {}
