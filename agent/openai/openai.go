// Package openai provides a core.Invoker backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/issuemesh/agent"
	"github.com/hupe1980/issuemesh/core"
)

// Options configure the OpenAI invoker.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	// CostPerMillionInput / CostPerMillionOutput are the dollar rates used
	// to attribute cost to a turn. Pricing tables are the caller's concern;
	// the defaults match the default model.
	CostPerMillionInput  float64
	CostPerMillionOutput float64
}

// Invoker wraps the OpenAI Chat Completions API behind the core.Invoker
// interface for one agent role.
type Invoker struct {
	client *openai.Client
	role   core.AgentRole
	opts   Options

	mu        sync.Mutex
	turnCount int
	totalCost float64
}

// NewInvoker creates an OpenAI-backed invoker for the given role using the
// official client.
func NewInvoker(role core.AgentRole, optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &Invoker{client: &client, role: role, opts: opts}
}

// NewInvokerFromClient creates an invoker from an existing client.
func NewInvokerFromClient(role core.AgentRole, client *openai.Client, optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, role: role, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:                openai.ChatModelGPT4oMini,
		Temperature:          0.7,
		MaxCompletionTokens:  4096,
		CostPerMillionInput:  0.15,
		CostPerMillionOutput: 0.60,
	}
}

// Role implements core.Invoker.
func (o *Invoker) Role() core.AgentRole { return o.role }

// StartConversation implements core.Invoker.
func (o *Invoker) StartConversation(ctx context.Context, ic core.InvocationContext) (*core.StartResult, error) {
	text, tokens, cost, err := o.complete(ctx, ic, []agent.Message{{Role: "user", Text: ic.Seed}})
	if err != nil {
		return nil, err
	}
	count, _ := o.account(cost)
	return &core.StartResult{Response: text, Cost: cost, Tokens: tokens, TurnCount: count}, nil
}

// ContinueConversation implements core.Invoker.
func (o *Invoker) ContinueConversation(ctx context.Context, ic core.InvocationContext) (*core.TurnResult, error) {
	msgs := append(agent.Transcript(o.role, ic.History), agent.Message{Role: "user", Text: ic.Input})
	text, tokens, cost, err := o.complete(ctx, ic, msgs)
	if err != nil {
		return nil, err
	}
	count, total := o.account(cost)
	return &core.TurnResult{Response: text, TurnCost: cost, Tokens: tokens, TotalCost: total, TurnCount: count}, nil
}

// FinalizeConversation implements core.Invoker.
func (o *Invoker) FinalizeConversation(ctx context.Context, ic core.InvocationContext) (*core.FinalizeResult, error) {
	msgs := append(agent.Transcript(o.role, ic.History), agent.Message{Role: "user", Text: agent.FinalizePrompt})
	text, _, cost, err := o.complete(ctx, ic, msgs)
	if err != nil {
		return nil, err
	}
	count, total := o.account(cost)
	return &core.FinalizeResult{
		CreatedIssues:     agent.ParseWorkItems(text),
		TotalCost:         total,
		ConversationTurns: count,
	}, nil
}

func (o *Invoker) account(cost float64) (turnCount int, totalCost float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turnCount++
	o.totalCost += cost
	return o.turnCount, o.totalCost
}

func (o *Invoker) complete(ctx context.Context, ic core.InvocationContext, msgs []agent.Message) (string, int, float64, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	messages = append(messages, openai.SystemMessage(agent.SystemPrompt(o.role, ic.Repo)))
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Text))
		} else {
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               o.opts.Model,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", 0, 0, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("no choices returned")
	}

	in := resp.Usage.PromptTokens
	out := resp.Usage.CompletionTokens
	cost := float64(in)/1e6*o.opts.CostPerMillionInput + float64(out)/1e6*o.opts.CostPerMillionOutput
	return resp.Choices[0].Message.Content, int(in + out), cost, nil
}

var _ core.Invoker = (*Invoker)(nil)
