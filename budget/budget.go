// Package budget implements pure consumption accounting for a session:
// token/cost usage against a mutable ceiling with an auditable extension
// ledger. The tracker only reports status; it never blocks usage itself.
// Budget exhaustion is a queried state, not an error; the interactive
// surface decides whether to negotiate an extension or end the session.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/issuemesh/core"
)

// Defaults applied when configuration supplies no limits.
const (
	DefaultInitialTokens    = 10000
	DefaultInitialCost      = 5.00
	DefaultWarningThreshold = 0.8
)

// Tracker accumulates token/cost usage against limits derived from the
// initial grant plus the extension ledger. Maximum values are never stored:
// they are recomputed from the ledger so a restored tracker cannot drift
// from its history. Safe for concurrent access.
type Tracker struct {
	mu sync.Mutex

	initialTokens    int
	initialCost      float64
	warningThreshold float64

	extensions []core.Extension

	tokensUsed int
	costUsed   float64
}

// Option mutates tracker construction parameters.
type Option func(*Tracker)

// WithLimits overrides the initial token and cost ceilings.
func WithLimits(tokens int, cost float64) Option {
	return func(t *Tracker) {
		t.initialTokens = tokens
		t.initialCost = cost
	}
}

// WithWarningThreshold overrides the near-limit warning fraction.
func WithWarningThreshold(f float64) Option {
	return func(t *Tracker) { t.warningThreshold = f }
}

// NewTracker creates a tracker at the documented defaults (10,000 tokens,
// $5.00, 0.8 warning threshold) unless overridden by options.
func NewTracker(optFns ...Option) *Tracker {
	t := &Tracker{
		initialTokens:    DefaultInitialTokens,
		initialCost:      DefaultInitialCost,
		warningThreshold: DefaultWarningThreshold,
	}
	for _, fn := range optFns {
		fn(t)
	}
	return t
}

// RecordUsage adds to the running totals. No upper bound is enforced here;
// callers query the limit predicates and decide how to react.
func (t *Tracker) RecordUsage(tokens int, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tokens > 0 {
		t.tokensUsed += tokens
	}
	if cost > 0 {
		t.costUsed += cost
	}
}

// Extend appends an auditable grant and raises both ceilings. Each call is a
// distinct ledger entry; grants are never merged. Negative amounts, or a
// grant adding nothing at all, are rejected with ErrInvalidExtension and
// leave the budget unchanged.
func (t *Tracker) Extend(tokens int, cost float64, reason string) error {
	if tokens < 0 || cost < 0 {
		return fmt.Errorf("%w: negative amounts (tokens=%d cost=%.2f)", core.ErrInvalidExtension, tokens, cost)
	}
	if tokens == 0 && cost == 0 {
		return fmt.Errorf("%w: grant must add tokens or cost", core.ErrInvalidExtension)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.extensions = append(t.extensions, core.Extension{
		Tokens:    tokens,
		Cost:      cost,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// MaxTokens returns the current token ceiling: initial plus all extensions.
func (t *Tracker) MaxTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxTokensLocked()
}

// MaxCost returns the current cost ceiling: initial plus all extensions.
func (t *Tracker) MaxCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxCostLocked()
}

func (t *Tracker) maxTokensLocked() int {
	max := t.initialTokens
	for _, ext := range t.extensions {
		max += ext.Tokens
	}
	return max
}

func (t *Tracker) maxCostLocked() float64 {
	max := t.initialCost
	for _, ext := range t.extensions {
		max += ext.Cost
	}
	return max
}

// TokensUsed returns the running token total.
func (t *Tracker) TokensUsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokensUsed
}

// CostUsed returns the running cost total.
func (t *Tracker) CostUsed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costUsed
}

// IsNearTokenLimit reports whether token usage crossed the warning fraction.
func (t *Tracker) IsNearTokenLimit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	max := t.maxTokensLocked()
	return max > 0 && float64(t.tokensUsed)/float64(max) >= t.warningThreshold
}

// IsNearCostLimit reports whether cost usage crossed the warning fraction.
func (t *Tracker) IsNearCostLimit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	max := t.maxCostLocked()
	return max > 0 && t.costUsed/max >= t.warningThreshold
}

// IsTokenLimitExceeded reports whether token usage reached the ceiling.
func (t *Tracker) IsTokenLimitExceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokensUsed >= t.maxTokensLocked()
}

// IsCostLimitExceeded reports whether cost usage reached the ceiling.
func (t *Tracker) IsCostLimitExceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costUsed >= t.maxCostLocked()
}

// Snapshot returns the full serializable state including the extension
// ledger, suitable for persistence across process restarts.
func (t *Tracker) Snapshot() core.BudgetSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	exts := make([]core.Extension, len(t.extensions))
	copy(exts, t.extensions)
	return core.BudgetSnapshot{
		InitialTokens:    t.initialTokens,
		InitialCost:      t.initialCost,
		WarningThreshold: t.warningThreshold,
		Extensions:       exts,
		TokensUsed:       t.tokensUsed,
		CostUsed:         t.costUsed,
	}
}

// Restore builds a tracker from a snapshot. Ceilings are rederived by
// replaying the extension ledger over the initial values, so a round trip
// reproduces MaxTokens/MaxCost exactly.
func Restore(s core.BudgetSnapshot) *Tracker {
	t := &Tracker{
		initialTokens:    s.InitialTokens,
		initialCost:      s.InitialCost,
		warningThreshold: s.WarningThreshold,
		tokensUsed:       s.TokensUsed,
		costUsed:         s.CostUsed,
	}
	if t.warningThreshold == 0 {
		t.warningThreshold = DefaultWarningThreshold
	}
	t.extensions = make([]core.Extension, len(s.Extensions))
	copy(t.extensions, s.Extensions)
	return t
}
