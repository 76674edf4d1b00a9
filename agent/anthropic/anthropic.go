// Package anthropic provides a core.Invoker backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/issuemesh/agent"
	"github.com/hupe1980/issuemesh/core"
)

// Options configures the Anthropic invoker (role, model id, temperature,
// max tokens, API key, token rates).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// CostPerMillionInput / CostPerMillionOutput are the dollar rates used
	// to attribute cost to a turn. Pricing tables are the caller's concern;
	// the defaults match the default model.
	CostPerMillionInput  float64
	CostPerMillionOutput float64
}

// Invoker wraps the Anthropic Messages API behind the core.Invoker
// interface for one agent role.
type Invoker struct {
	client *anthropic.Client
	role   core.AgentRole
	opts   Options

	mu        sync.Mutex
	turnCount int
	totalCost float64
}

// NewInvoker creates an Anthropic-backed invoker for the given role using
// the official client.
func NewInvoker(role core.AgentRole, optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Invoker{client: &client, role: role, opts: opts}
}

// NewInvokerFromClient creates an invoker from an existing client.
func NewInvokerFromClient(role core.AgentRole, client *anthropic.Client, optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, role: role, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:                anthropic.ModelClaude3_5Sonnet20241022,
		Temperature:          0.7,
		MaxTokens:            4096,
		CostPerMillionInput:  3.00,
		CostPerMillionOutput: 15.00,
	}
}

// Role implements core.Invoker.
func (a *Invoker) Role() core.AgentRole { return a.role }

// StartConversation implements core.Invoker.
func (a *Invoker) StartConversation(ctx context.Context, ic core.InvocationContext) (*core.StartResult, error) {
	text, tokens, cost, err := a.complete(ctx, ic, []agent.Message{{Role: "user", Text: ic.Seed}})
	if err != nil {
		return nil, err
	}
	count, _ := a.account(cost)
	return &core.StartResult{Response: text, Cost: cost, Tokens: tokens, TurnCount: count}, nil
}

// ContinueConversation implements core.Invoker.
func (a *Invoker) ContinueConversation(ctx context.Context, ic core.InvocationContext) (*core.TurnResult, error) {
	msgs := append(agent.Transcript(a.role, ic.History), agent.Message{Role: "user", Text: ic.Input})
	text, tokens, cost, err := a.complete(ctx, ic, msgs)
	if err != nil {
		return nil, err
	}
	count, total := a.account(cost)
	return &core.TurnResult{Response: text, TurnCost: cost, Tokens: tokens, TotalCost: total, TurnCount: count}, nil
}

// FinalizeConversation implements core.Invoker.
func (a *Invoker) FinalizeConversation(ctx context.Context, ic core.InvocationContext) (*core.FinalizeResult, error) {
	msgs := append(agent.Transcript(a.role, ic.History), agent.Message{Role: "user", Text: agent.FinalizePrompt})
	text, _, cost, err := a.complete(ctx, ic, msgs)
	if err != nil {
		return nil, err
	}
	count, total := a.account(cost)
	return &core.FinalizeResult{
		CreatedIssues:     agent.ParseWorkItems(text),
		TotalCost:         total,
		ConversationTurns: count,
	}, nil
}

func (a *Invoker) account(cost float64) (turnCount int, totalCost float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.turnCount++
	a.totalCost += cost
	return a.turnCount, a.totalCost
}

func (a *Invoker) complete(ctx context.Context, ic core.InvocationContext, msgs []agent.Message) (string, int, float64, error) {
	params := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		Messages:    buildMessages(msgs),
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: agent.SystemPrompt(a.role, ic.Repo)}},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	in := resp.Usage.InputTokens
	out := resp.Usage.OutputTokens
	cost := float64(in)/1e6*a.opts.CostPerMillionInput + float64(out)/1e6*a.opts.CostPerMillionOutput
	return sb.String(), int(in + out), cost, nil
}

// buildMessages converts neutral messages to Anthropic message params,
// coalescing consecutive same-role messages as the API requires alternating
// roles.
func buildMessages(msgs []agent.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pendingRole string
	var pending []string

	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := anthropic.NewTextBlock(strings.Join(pending, "\n"))
		if pendingRole == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
		pending = nil
	}

	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		if role != pendingRole {
			flush()
			pendingRole = role
		}
		pending = append(pending, m.Text)
	}
	flush()
	return out
}

var _ core.Invoker = (*Invoker)(nil)
