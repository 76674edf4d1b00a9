// Package conversation implements the stateful core of a session: the
// append-only turn history, the conversation state machine, the proposed
// work item cache, the token budget and (for multi-agent sessions) the
// handoff ledger. A Conversation persists itself through a core.RecordStore
// as one whole document per session.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/issuemesh/budget"
	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/logging"
)

// Options holds dependency overrides passed to New and Load.
type Options struct {
	// Audit receives fire-and-forget interaction records.
	Audit core.AuditSink
	// Logger receives structured engine logs.
	Logger logging.Logger
}

// Conversation owns all mutable state of one session. All exported methods
// are safe for concurrent use, though the engine advances a session strictly
// one turn at a time.
type Conversation struct {
	mu sync.Mutex

	store  core.RecordStore
	audit  core.AuditSink
	logger logging.Logger

	rec    *core.Record
	budget *budget.Tracker
}

// New creates a conversation from a freshly built record and persists it.
func New(ctx context.Context, store core.RecordStore, rec *core.Record, optFns ...func(o *Options)) (*Conversation, error) {
	c := build(store, rec, optFns...)
	if err := c.persist(ctx); err != nil {
		return nil, fmt.Errorf("failed to persist new conversation: %w", err)
	}
	return c, nil
}

// Load rehydrates a conversation from the persisted record. A session id
// with no record fails with ErrConversationNotFound: callers must create
// before reading.
func Load(ctx context.Context, store core.RecordStore, sessionID string, optFns ...func(o *Options)) (*Conversation, error) {
	rec, err := store.Get(ctx, sessionID, core.RecordKey)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session %q", core.ErrConversationNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return build(store, rec, optFns...), nil
}

func build(store core.RecordStore, rec *core.Record, optFns ...func(o *Options)) *Conversation {
	opts := Options{
		Audit:  core.NoOpAuditSink{},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Conversation{
		store:  store,
		audit:  opts.Audit,
		logger: opts.Logger,
		rec:    rec.Clone(),
		budget: budget.Restore(rec.TokenBudget),
	}
}

// SessionID returns the immutable session identifier.
func (c *Conversation) SessionID() string { return c.rec.SessionID }

// Repo returns the repository this session targets.
func (c *Conversation) Repo() core.RepoRef { return c.rec.Repo }

// Kind reports whether this is a single or multi agent conversation.
func (c *Conversation) Kind() core.ConversationKind { return c.rec.Kind }

// State returns the current conversation state.
func (c *Conversation) State() core.ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.State
}

// Budget returns the tracker owning token/cost accounting for this session.
func (c *Conversation) Budget() *budget.Tracker { return c.budget }

// TotalCost returns the accumulated cost across all turns.
func (c *Conversation) TotalCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.TotalCost
}

// TurnCount returns the number of recorded turns.
func (c *Conversation) TurnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.TurnCount
}

// ActiveAgent returns the currently active agent role. The second return is
// false for single-agent conversations, where routing bookkeeping is absent
// and the business analyst implicitly handles every turn.
func (c *Conversation) ActiveAgent() (core.AgentRole, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.MultiAgent == nil {
		return core.RoleBA, false
	}
	return c.rec.MultiAgent.ActiveAgent, true
}

// Routing returns a copy of the multi-agent routing ledger, or nil for
// single-agent conversations.
func (c *Conversation) Routing() *core.MultiAgentRouting {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.MultiAgent.Clone()
}

// ProposedItems returns a copy of the current draft work items.
func (c *Conversation) ProposedItems() []core.WorkItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]core.WorkItem, len(c.rec.ProposedIssues))
	copy(items, c.rec.ProposedIssues)
	return items
}

// Record returns a deep copy of the persisted document shape, including the
// current budget snapshot.
func (c *Conversation) Record() *core.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.rec.Clone()
	rec.TokenBudget = c.budget.Snapshot()
	return rec
}

// AppendTurn assigns the next sequence number, updates running cost and turn
// count, stamps last activity and persists. Turns are append-only: the
// returned turn must be treated as immutable. Appending remains legal after
// finalization so audit turns can still be recorded.
func (c *Conversation) AppendTurn(ctx context.Context, speaker core.Speaker, message string, cost float64, handoff *core.HandoffMeta) (core.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn := core.NewTurn(speaker, message, cost)
	turn.Handoff = handoff
	c.appendLocked(turn)

	if err := c.persistLocked(ctx); err != nil {
		return core.Turn{}, err
	}

	appended := c.rec.History[len(c.rec.History)-1]
	c.audit.LogInteraction("turn", message, map[string]string{
		"session_id": c.rec.SessionID,
		"speaker":    string(speaker),
		"sequence":   strconv.Itoa(appended.Sequence),
	})
	c.logger.Debug("turn appended session_id=%s speaker=%s sequence=%d", c.rec.SessionID, speaker, appended.Sequence)
	return appended, nil
}

func (c *Conversation) appendLocked(turn core.Turn) {
	turn.Sequence = len(c.rec.History) + 1
	c.rec.History = append(c.rec.History, turn)
	c.rec.TurnCount++
	if turn.Cost > 0 {
		c.rec.TotalCost += turn.Cost
	}
	c.rec.Updated = time.Now().UTC()
}

// TransitionTo moves the conversation to a new state. Transitions outside
// the allowed set fail with ErrInvalidStateTransition and leave the state
// unchanged.
func (c *Conversation) TransitionTo(ctx context.Context, to core.ConversationState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !core.CanTransition(c.rec.State, to) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidStateTransition, c.rec.State, to)
	}
	if c.rec.State == to {
		return nil
	}
	c.rec.State = to
	return c.persistLocked(ctx)
}

// SetProposedItems replaces the draft work items and forces the state to
// ready_to_finalize. This is the one sanctioned shortcut through the state
// machine: the agent signaling readiness implies the proposing step. It
// fails once the conversation is finalized.
func (c *Conversation) SetProposedItems(ctx context.Context, items []core.WorkItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.State == core.StateFinalized {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidStateTransition, core.StateFinalized, core.StateReadyToFinalize)
	}
	c.rec.ProposedIssues = make([]core.WorkItem, len(items))
	copy(c.rec.ProposedIssues, items)
	c.rec.State = core.StateReadyToFinalize
	return c.persistLocked(ctx)
}

// Finalize transitions the conversation to its terminal state. It requires
// the conversation to be proposing or ready to finalize and fails with
// ErrNotReadyToFinalize otherwise. After finalization proposed items and
// state are frozen; only audit turns may still be appended.
func (c *Conversation) Finalize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.State != core.StateReadyToFinalize && c.rec.State != core.StateProposing {
		return fmt.Errorf("%w: state is %s", core.ErrNotReadyToFinalize, c.rec.State)
	}
	c.rec.State = core.StateFinalized
	if c.rec.MultiAgent != nil {
		c.rec.MultiAgent.Collaboration = core.CollaborationCompleted
	}
	return c.persistLocked(ctx)
}

// RecordHandoff appends a system turn describing the handoff, increments the
// handoff count, updates the last-handoff descriptor and sets the active
// agent. Only multi-agent conversations keep a handoff ledger.
func (c *Conversation) RecordHandoff(ctx context.Context, from, to core.AgentRole, reason string) (core.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.MultiAgent == nil {
		return core.Turn{}, fmt.Errorf("handoff recorded on single-agent conversation %q", c.rec.SessionID)
	}

	turn := core.NewHandoffTurn(from, to, reason)
	c.appendLocked(turn)
	c.rec.MultiAgent.HandoffCount++
	c.rec.MultiAgent.LastHandoff = turn.Handoff
	c.rec.MultiAgent.ActiveAgent = to

	if err := c.persistLocked(ctx); err != nil {
		return core.Turn{}, err
	}

	appended := c.rec.History[len(c.rec.History)-1]
	c.audit.LogInteraction("handoff", reason, map[string]string{
		"session_id": c.rec.SessionID,
		"from":       string(from),
		"to":         string(to),
	})
	c.logger.Info("handoff recorded session_id=%s from=%s to=%s reason=%s", c.rec.SessionID, from, to, reason)
	return appended, nil
}

// Escalate marks multi-agent collaboration as escalated beyond the normal
// flow and documents it with a system turn.
func (c *Conversation) Escalate(ctx context.Context, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.MultiAgent == nil {
		return fmt.Errorf("escalation on single-agent conversation %q", c.rec.SessionID)
	}
	c.appendLocked(core.NewSystemTurn("collaboration escalated: " + reason))
	c.rec.MultiAgent.Collaboration = core.CollaborationEscalated
	return c.persistLocked(ctx)
}

// History returns a lazy, restartable sequence over a snapshot of the full
// turn history in order.
func (c *Conversation) History() iter.Seq[core.Turn] {
	return c.historySeq("")
}

// HistoryFor returns the history filtered to turns relevant to the given
// agent: user and system turns plus the other agent's turns. An agent never
// re-reads its own prior output verbatim.
func (c *Conversation) HistoryFor(role core.AgentRole) iter.Seq[core.Turn] {
	return c.historySeq(role)
}

func (c *Conversation) historySeq(role core.AgentRole) iter.Seq[core.Turn] {
	c.mu.Lock()
	turns := make([]core.Turn, len(c.rec.History))
	copy(turns, c.rec.History)
	c.mu.Unlock()

	return func(yield func(core.Turn) bool) {
		for _, t := range turns {
			if role != "" && t.Speaker == role.Speaker() {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// VisibleTurns collects HistoryFor into a slice for agent invocation.
func (c *Conversation) VisibleTurns(role core.AgentRole) []core.Turn {
	var turns []core.Turn
	for t := range c.HistoryFor(role) {
		turns = append(turns, t)
	}
	return turns
}

func (c *Conversation) persist(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked(ctx)
}

// persistLocked writes the whole document, folding the live budget snapshot
// back into the record first. Persistence failures propagate unmodified.
func (c *Conversation) persistLocked(ctx context.Context) error {
	c.rec.TokenBudget = c.budget.Snapshot()
	c.rec.Updated = time.Now().UTC()
	return c.store.Set(ctx, c.rec.SessionID, core.RecordKey, c.rec.Clone())
}
