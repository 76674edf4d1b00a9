package core

import "context"

// InvocationContext carries everything an agent needs to process a turn:
// session identity, repository identity, and either an initial prompt seed
// (first turn) or the latest user input, plus the visible turn history.
type InvocationContext struct {
	SessionID string
	Repo      RepoRef
	// Seed is the repository briefing used by StartConversation.
	Seed string
	// Input is the latest user message for ContinueConversation.
	Input string
	// History is the turn history visible to the invoked agent, already
	// filtered so the agent does not re-read its own prior output.
	History []Turn
}

// StartResult is returned by the first agent invocation of a session.
type StartResult struct {
	Response  string
	Cost      float64
	Tokens    int
	TurnCount int
}

// TurnResult is returned by every subsequent agent invocation.
type TurnResult struct {
	Response  string
	TurnCost  float64
	Tokens    int
	TotalCost float64
	TurnCount int
	State     ConversationState
}

// FinalizeResult reports the outcome of converting proposed work items into
// persisted deliverables.
type FinalizeResult struct {
	CreatedIssues     []WorkItem
	DuplicatesFound   int
	TotalCost         float64
	ConversationTurns int
}

// Invoker is the agent invocation contract. Implementations wrap a concrete
// model provider (Anthropic, OpenAI, scripted test doubles) behind the three
// conversation operations the engine needs. All methods block until the
// provider responds or ctx is done; the engine handles timeouts and fallback
// above this interface.
type Invoker interface {
	// Role identifies which agent variant this invoker implements.
	Role() AgentRole
	StartConversation(ctx context.Context, ic InvocationContext) (*StartResult, error)
	ContinueConversation(ctx context.Context, ic InvocationContext) (*TurnResult, error)
	FinalizeConversation(ctx context.Context, ic InvocationContext) (*FinalizeResult, error)
}
