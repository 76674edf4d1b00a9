package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/issuemesh/core"
)

// ScriptedInvoker is a deterministic core.Invoker for tests. It replays
// canned responses in order, optionally injecting failures or delays to
// exercise timeout and fallback paths, and records every invocation context
// it receives for assertions.
type ScriptedInvoker struct {
	mu        sync.Mutex
	role      core.AgentRole
	responses []string
	idx       int
	err       error
	delay     time.Duration
	turnCost  float64
	turnToken int
	totalCost float64
	turnCount int
	state     core.ConversationState
	calls     []core.InvocationContext
}

// NewScriptedInvoker creates an invoker for the given role replaying the
// provided responses. When responses run out a generic reply is produced.
func NewScriptedInvoker(role core.AgentRole, responses ...string) *ScriptedInvoker {
	return &ScriptedInvoker{
		role:      role,
		responses: responses,
		turnCost:  0.05,
		turnToken: 150,
		state:     core.StateGathering,
	}
}

// FailWith makes every subsequent call return err until cleared with nil.
func (s *ScriptedInvoker) FailWith(err error) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Delay makes every call sleep (or honor ctx cancellation) before replying.
// Use with a short router timeout to exercise the timeout fallback.
func (s *ScriptedInvoker) Delay(d time.Duration) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

// WithUsage overrides the per-turn cost and token usage reported.
func (s *ScriptedInvoker) WithUsage(tokens int, cost float64) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnToken = tokens
	s.turnCost = cost
	return s
}

// WithState overrides the conversation state reported by ContinueConversation.
func (s *ScriptedInvoker) WithState(state core.ConversationState) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return s
}

// Calls returns a copy of all invocation contexts received so far.
func (s *ScriptedInvoker) Calls() []core.InvocationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]core.InvocationContext, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// Role implements core.Invoker.
func (s *ScriptedInvoker) Role() core.AgentRole { return s.role }

func (s *ScriptedInvoker) next(ctx context.Context, ic core.InvocationContext) (string, error) {
	s.mu.Lock()
	delay, err := s.delay, s.err
	s.calls = append(s.calls, ic)
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx < len(s.responses) {
		resp := s.responses[s.idx]
		s.idx++
		return resp, nil
	}
	return fmt.Sprintf("scripted %s response %d", s.role, s.idx), nil
}

// StartConversation implements core.Invoker.
func (s *ScriptedInvoker) StartConversation(ctx context.Context, ic core.InvocationContext) (*core.StartResult, error) {
	resp, err := s.next(ctx, ic)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnCount++
	s.totalCost += s.turnCost
	return &core.StartResult{Response: resp, Cost: s.turnCost, Tokens: s.turnToken, TurnCount: s.turnCount}, nil
}

// ContinueConversation implements core.Invoker.
func (s *ScriptedInvoker) ContinueConversation(ctx context.Context, ic core.InvocationContext) (*core.TurnResult, error) {
	resp, err := s.next(ctx, ic)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnCount++
	s.totalCost += s.turnCost
	return &core.TurnResult{
		Response:  resp,
		TurnCost:  s.turnCost,
		Tokens:    s.turnToken,
		TotalCost: s.totalCost,
		TurnCount: s.turnCount,
		State:     s.state,
	}, nil
}

// FinalizeConversation implements core.Invoker.
func (s *ScriptedInvoker) FinalizeConversation(ctx context.Context, ic core.InvocationContext) (*core.FinalizeResult, error) {
	if _, err := s.next(ctx, ic); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &core.FinalizeResult{
		CreatedIssues:     []core.WorkItem{{Title: "scripted issue", Body: "created by test double"}},
		TotalCost:         s.totalCost,
		ConversationTurns: s.turnCount,
	}, nil
}

var _ core.Invoker = (*ScriptedInvoker)(nil)
