// Package router decides which agent variant handles a given user turn. It
// resolves explicit prefix commands, applies keyword-based intent detection
// in multi-agent mode, performs handoff bookkeeping through the conversation
// and wraps agent invocation with a timeout plus fallback to the business
// analyst, the default always-available agent.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/issuemesh/conversation"
	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/logging"
)

// KeywordTable is the injectable intent detection vocabulary. Technical
// keywords are checked before business keywords, so technical wins when an
// input matches both lists.
type KeywordTable struct {
	Technical []string `yaml:"technical"`
	Business  []string `yaml:"business"`
}

// DefaultKeywordTable returns the built-in vocabulary.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		Technical: []string{
			"architecture", "api", "database", "schema", "performance",
			"security", "deploy", "infrastructure", "framework", "library",
			"refactor", "scalab", "latency", "technical", "stack", "migration",
		},
		Business: []string{
			"requirement", "user story", "stakeholder", "business", "scope",
			"priority", "acceptance criteria", "feature", "workflow",
			"deadline", "roadmap", "customer",
		},
	}
}

// Command is a parsed explicit routing command.
type Command struct {
	// Agent is the requested target. Empty when Toggle is set.
	Agent core.AgentRole
	// Toggle requests a switch to whichever agent is not active.
	Toggle bool
	// Message is the input with the command prefix stripped.
	Message string
}

// Decision is the routing outcome for one user input.
type Decision struct {
	// Agent should handle the turn.
	Agent core.AgentRole
	// Message is the input with any command prefix stripped.
	Message string
	// Explicit is set when the user commanded the target directly.
	Explicit bool
	// Suggested carries a detected-intent auto-switch suggestion when it
	// differs from the current agent. Suggestions are surfaced, never
	// applied: an unannounced switch would alter turn attribution.
	Suggested core.AgentRole
}

// Options holds router configuration overrides.
type Options struct {
	// TechLead enables the tech lead agent. Absent in degraded setups.
	TechLead core.Invoker
	// Keywords overrides the intent detection vocabulary.
	Keywords KeywordTable
	// MultiAgent enables intent detection and handoff bookkeeping.
	MultiAgent bool
	// Timeout bounds a single agent invocation.
	Timeout time.Duration
	// Audit receives fallback and routing interaction records.
	Audit core.AuditSink
	// Logger receives structured routing logs.
	Logger logging.Logger
}

// Router resolves agents for user turns and encapsulates handoff and
// fallback bookkeeping. Build one per session via New.
type Router struct {
	agents     map[core.AgentRole]core.Invoker
	keywords   KeywordTable
	multiAgent bool
	timeout    time.Duration
	audit      core.AuditSink
	logger     logging.Logger
}

// New constructs a router around the business analyst invoker, which must
// always be present. The tech lead is optional.
func New(ba core.Invoker, optFns ...func(o *Options)) *Router {
	opts := Options{
		Keywords: DefaultKeywordTable(),
		Timeout:  60 * time.Second,
		Audit:    core.NoOpAuditSink{},
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	agents := map[core.AgentRole]core.Invoker{core.RoleBA: ba}
	if opts.TechLead != nil {
		agents[core.RoleTL] = opts.TechLead
	}
	return &Router{
		agents:     agents,
		keywords:   opts.Keywords,
		multiAgent: opts.MultiAgent,
		timeout:    opts.Timeout,
		audit:      opts.Audit,
		logger:     opts.Logger,
	}
}

// Available reports whether the given agent role is configured.
func (r *Router) Available(role core.AgentRole) bool {
	_, ok := r.agents[role]
	return ok
}

// ParseExplicitCommand recognizes prefix commands (@tl/@techLead,
// @ba/@business) and the bare switch command. It returns nil when the input
// matches no explicit command.
func ParseExplicitCommand(input string) *Command {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)

	if lower == "switch" {
		return &Command{Toggle: true}
	}

	prefixes := []struct {
		prefix string
		agent  core.AgentRole
	}{
		{"@techlead", core.RoleTL},
		{"@tl", core.RoleTL},
		{"@business", core.RoleBA},
		{"@ba", core.RoleBA},
	}
	for _, p := range prefixes {
		if !strings.HasPrefix(lower, p.prefix) {
			continue
		}
		rest := trimmed[len(p.prefix):]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			continue // longer word sharing the prefix, e.g. "@basics"
		}
		return &Command{Agent: p.agent, Message: strings.TrimSpace(rest)}
	}
	return nil
}

// DetectIntent classifies the input against the keyword table using
// case-insensitive substring matching. Technical keywords are checked first,
// so technical wins on ambiguity. Returns the empty role when nothing
// matches, and unconditionally in single-agent mode.
func (r *Router) DetectIntent(input string) core.AgentRole {
	if !r.multiAgent {
		return ""
	}
	lower := strings.ToLower(input)
	for _, kw := range r.keywords.Technical {
		if strings.Contains(lower, kw) {
			return core.RoleTL
		}
	}
	for _, kw := range r.keywords.Business {
		if strings.Contains(lower, kw) {
			return core.RoleBA
		}
	}
	return ""
}

// Route resolves the agent for one raw user input. Precedence: explicit
// command, then detected-intent suggestion (only emitted when it differs
// from the current agent), then no change.
func (r *Router) Route(input string, current core.AgentRole) Decision {
	if cmd := ParseExplicitCommand(input); cmd != nil {
		target := cmd.Agent
		if cmd.Toggle {
			target = current.Other()
		}
		return Decision{Agent: target, Message: cmd.Message, Explicit: true}
	}

	if intent := r.DetectIntent(input); intent != "" && intent != current {
		return Decision{Agent: current, Message: input, Suggested: intent}
	}

	return Decision{Agent: current, Message: input}
}

// SwitchTo validates the target agent is configured and records the handoff
// on the conversation, updating the active agent. An unavailable target
// fails with ErrAgentUnavailable and leaves the active agent unchanged.
func (r *Router) SwitchTo(ctx context.Context, conv *conversation.Conversation, target core.AgentRole, reason string) (core.Turn, error) {
	if !target.Valid() || !r.Available(target) {
		return core.Turn{}, fmt.Errorf("%w: %s", core.ErrAgentUnavailable, target)
	}
	current, _ := conv.ActiveAgent()
	if current == target {
		return core.Turn{}, nil
	}
	turn, err := conv.RecordHandoff(ctx, current, target, reason)
	if err != nil {
		return core.Turn{}, err
	}
	return turn, nil
}

// Invoke runs the routed agent against the user input, bounded by the
// configured timeout. If the invocation fails or times out it retries the
// same input against the business analyst, recording the fallback and its
// cause as a system turn. The user's input is never dropped silently.
// It returns the result together with the role that actually produced it.
func (r *Router) Invoke(ctx context.Context, conv *conversation.Conversation, role core.AgentRole, input string) (*core.TurnResult, core.AgentRole, error) {
	inv, ok := r.agents[role]
	if !ok {
		inv, role = r.agents[core.RoleBA], core.RoleBA
	}

	result, err := r.invokeOne(ctx, conv, inv, role, input)
	if err == nil {
		return result, role, nil
	}
	if role == core.RoleBA {
		return nil, role, fmt.Errorf("business analyst invocation failed: %w", err)
	}

	r.logger.Warn("agent %s failed, falling back to business analyst: %v", role, err)
	fallbackNote := fmt.Sprintf("agent %s failed (%v); falling back to business analyst", role, err)
	if _, auditErr := conv.AppendTurn(ctx, core.SpeakerSystem, fallbackNote, 0, nil); auditErr != nil {
		return nil, role, fmt.Errorf("failed to record fallback: %w", auditErr)
	}
	r.audit.LogInteraction("fallback", fallbackNote, map[string]string{
		"session_id": conv.SessionID(),
		"from":       string(role),
		"cause":      err.Error(),
	})

	result, err = r.invokeOne(ctx, conv, r.agents[core.RoleBA], core.RoleBA, input)
	if err != nil {
		return nil, core.RoleBA, fmt.Errorf("fallback invocation failed: %w", err)
	}
	return result, core.RoleBA, nil
}

// Start runs the first agent invocation of a session with the repository
// seed context. It follows the same timeout and business-analyst fallback
// contract as Invoke.
func (r *Router) Start(ctx context.Context, conv *conversation.Conversation, role core.AgentRole, seed string) (*core.StartResult, core.AgentRole, error) {
	inv, ok := r.agents[role]
	if !ok {
		inv, role = r.agents[core.RoleBA], core.RoleBA
	}

	result, err := r.startOne(ctx, conv, inv, seed)
	if err == nil {
		return result, role, nil
	}
	if role == core.RoleBA {
		return nil, role, fmt.Errorf("business analyst invocation failed: %w", err)
	}

	fallbackNote := fmt.Sprintf("agent %s failed (%v); falling back to business analyst", role, err)
	if _, auditErr := conv.AppendTurn(ctx, core.SpeakerSystem, fallbackNote, 0, nil); auditErr != nil {
		return nil, role, fmt.Errorf("failed to record fallback: %w", auditErr)
	}
	r.audit.LogInteraction("fallback", fallbackNote, map[string]string{
		"session_id": conv.SessionID(),
		"from":       string(role),
		"cause":      err.Error(),
	})

	result, err = r.startOne(ctx, conv, r.agents[core.RoleBA], seed)
	if err != nil {
		return nil, core.RoleBA, fmt.Errorf("fallback invocation failed: %w", err)
	}
	return result, core.RoleBA, nil
}

func (r *Router) startOne(ctx context.Context, conv *conversation.Conversation, inv core.Invoker, seed string) (*core.StartResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return inv.StartConversation(ctx, core.InvocationContext{
		SessionID: conv.SessionID(),
		Repo:      conv.Repo(),
		Seed:      seed,
	})
}

// Finalize asks the given agent (the business analyst when the role is not
// configured) to turn the proposed work items into persisted deliverables.
// Failures surface to the caller; there is no fallback since finalization is
// not a routed user turn.
func (r *Router) Finalize(ctx context.Context, conv *conversation.Conversation, role core.AgentRole) (*core.FinalizeResult, error) {
	inv, ok := r.agents[role]
	if !ok {
		inv = r.agents[core.RoleBA]
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return inv.FinalizeConversation(ctx, core.InvocationContext{
		SessionID: conv.SessionID(),
		Repo:      conv.Repo(),
		History:   conv.VisibleTurns(role),
	})
}

func (r *Router) invokeOne(ctx context.Context, conv *conversation.Conversation, inv core.Invoker, role core.AgentRole, input string) (*core.TurnResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := inv.ContinueConversation(ctx, core.InvocationContext{
		SessionID: conv.SessionID(),
		Repo:      conv.Repo(),
		Input:     input,
		History:   conv.VisibleTurns(role),
	})
	if err != nil {
		r.logger.Debug("agent call failed role=%s duration=%s err=%v", role, time.Since(start), err)
		return nil, err
	}
	r.logger.Debug("agent call completed role=%s duration=%s tokens=%d", role, time.Since(start), result.Tokens)
	return result, nil
}
