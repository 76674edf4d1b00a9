package session

import (
	"context"
	"fmt"

	"github.com/hupe1980/issuemesh/conversation"
	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/logging"
	"github.com/hupe1980/issuemesh/router"
)

// Session is the handle for one active conversation: the state machine plus
// its per-session router. It advances the conversation one user turn at a
// time; all mutation happens strictly between reading the input and
// appending the resulting turns.
type Session struct {
	conv   *conversation.Conversation
	router *router.Router
	audit  core.AuditSink
	logger logging.Logger
}

// Outcome reports the result of advancing the session by one user input.
type Outcome struct {
	// Response is the agent's reply, empty for pure switch commands.
	Response string
	// Agent produced the response (after any fallback).
	Agent core.AgentRole
	// SwitchedTo is set when an explicit command moved the active agent.
	SwitchedTo core.AgentRole
	// Suggested carries an auto-switch suggestion the caller may surface.
	// The engine never applies it.
	Suggested core.AgentRole
	// State is the conversation state after the turn.
	State core.ConversationState
	// Budget status after recording this turn's usage. Exhaustion is not
	// an error: the interactive surface negotiates an extension or ends
	// the session.
	NearTokenLimit     bool
	NearCostLimit      bool
	TokenLimitExceeded bool
	CostLimitExceeded  bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.conv.SessionID() }

// Conversation exposes the underlying state machine.
func (s *Session) Conversation() *conversation.Conversation { return s.conv }

// Router exposes the per-session agent router.
func (s *Session) Router() *router.Router { return s.router }

// Seed returns the repository briefing for the first agent invocation.
func (s *Session) Seed() string {
	repo := s.conv.Repo()
	return fmt.Sprintf(
		"You are working against the GitHub repository %s. Gather the user's requirements and draft actionable work items (issue title plus body) for it.",
		repo,
	)
}

// Start runs the first agent invocation with the repository seed, records
// usage against the budget and appends the agent's opening turn.
func (s *Session) Start(ctx context.Context) (*Outcome, error) {
	role, _ := s.conv.ActiveAgent()
	result, usedRole, err := s.router.Start(ctx, s.conv, role, s.Seed())
	if err != nil {
		return nil, err
	}

	s.conv.Budget().RecordUsage(result.Tokens, result.Cost)
	if _, err := s.conv.AppendTurn(ctx, usedRole.Speaker(), result.Response, result.Cost, nil); err != nil {
		return nil, err
	}
	return s.outcome(result.Response, usedRole, ""), nil
}

// Send advances the session by one raw user input: routing, any explicit
// agent switch, the agent invocation with fallback, budget accounting and
// turn persistence. Suspension points are exactly the agent invocation and
// the persistence writes; the budget check and turn append only happen
// after those complete.
func (s *Session) Send(ctx context.Context, input string) (*Outcome, error) {
	current, multi := s.conv.ActiveAgent()
	decision := s.router.Route(input, current)

	var switchedTo core.AgentRole
	if decision.Explicit && decision.Agent != current {
		if !multi {
			// Single-agent sessions have nothing to switch to.
			if decision.Agent != core.RoleBA {
				return nil, fmt.Errorf("%w: %s", core.ErrAgentUnavailable, decision.Agent)
			}
		} else {
			if _, err := s.router.SwitchTo(ctx, s.conv, decision.Agent, "explicit command"); err != nil {
				return nil, err
			}
			switchedTo = decision.Agent
		}
	}

	// A bare switch or agent mention carries no message to process.
	if decision.Message == "" {
		return s.outcome("", decision.Agent, switchedTo), nil
	}

	if _, err := s.conv.AppendTurn(ctx, core.SpeakerUser, decision.Message, 0, nil); err != nil {
		return nil, err
	}

	target := decision.Agent
	result, usedRole, err := s.router.Invoke(ctx, s.conv, target, decision.Message)
	if err != nil {
		return nil, err
	}

	s.conv.Budget().RecordUsage(result.Tokens, result.TurnCost)
	if _, err := s.conv.AppendTurn(ctx, usedRole.Speaker(), result.Response, result.TurnCost, nil); err != nil {
		return nil, err
	}

	if result.State != "" && result.State != s.conv.State() {
		if err := s.conv.TransitionTo(ctx, result.State); err != nil {
			// Agents only hint at state; an illegal hint is dropped.
			s.logger.Debug("ignoring illegal state hint %s: %v", result.State, err)
		}
	}

	out := s.outcome(result.Response, usedRole, switchedTo)
	out.Suggested = decision.Suggested
	return out, nil
}

// Propose replaces the draft work items and moves the conversation to
// ready_to_finalize.
func (s *Session) Propose(ctx context.Context, items []core.WorkItem) error {
	return s.conv.SetProposedItems(ctx, items)
}

// Finalize asks the active agent to persist the proposed work items, then
// seals the conversation. The conversation must be proposing or ready to
// finalize.
func (s *Session) Finalize(ctx context.Context) (*core.FinalizeResult, error) {
	state := s.conv.State()
	if state != core.StateReadyToFinalize && state != core.StateProposing {
		return nil, fmt.Errorf("%w: state is %s", core.ErrNotReadyToFinalize, state)
	}

	role, _ := s.conv.ActiveAgent()
	result, err := s.router.Finalize(ctx, s.conv, role)
	if err != nil {
		return nil, fmt.Errorf("finalize invocation failed: %w", err)
	}

	if err := s.conv.Finalize(ctx); err != nil {
		return nil, err
	}
	s.audit.LogInteraction("finalize", fmt.Sprintf("%d issues created", len(result.CreatedIssues)), map[string]string{
		"session_id": s.conv.SessionID(),
	})
	return result, nil
}

// ExtendBudget grants additional tokens/cost after user negotiation and
// documents the grant with a system turn.
func (s *Session) ExtendBudget(ctx context.Context, tokens int, cost float64, reason string) error {
	if err := s.conv.Budget().Extend(tokens, cost, reason); err != nil {
		return err
	}
	note := fmt.Sprintf("budget extended by %d tokens / $%.2f: %s", tokens, cost, reason)
	if _, err := s.conv.AppendTurn(ctx, core.SpeakerSystem, note, 0, nil); err != nil {
		return err
	}
	return nil
}

func (s *Session) outcome(response string, agent, switchedTo core.AgentRole) *Outcome {
	b := s.conv.Budget()
	return &Outcome{
		Response:           response,
		Agent:              agent,
		SwitchedTo:         switchedTo,
		State:              s.conv.State(),
		NearTokenLimit:     b.IsNearTokenLimit(),
		NearCostLimit:      b.IsNearCostLimit(),
		TokenLimitExceeded: b.IsTokenLimitExceeded(),
		CostLimitExceeded:  b.IsCostLimitExceeded(),
	}
}
