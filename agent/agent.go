// Package agent provides shared building blocks for concrete core.Invoker
// implementations: role system prompts and the conversion of turn history
// into provider-neutral chat messages. Provider adapters live in the
// anthropic and openai subpackages.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/issuemesh/core"
)

// Message is a provider-neutral chat message.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string
	Text string
}

// SystemPrompt returns the role instruction for the given agent variant
// targeting the given repository.
func SystemPrompt(role core.AgentRole, repo core.RepoRef) string {
	switch role {
	case core.RoleTL:
		return fmt.Sprintf(
			"You are the tech lead for the GitHub repository %s. "+
				"Assess technical feasibility, architecture and implementation risks of the user's requests. "+
				"Keep answers concrete and scoped to what can become actionable work items.",
			repo,
		)
	default:
		return fmt.Sprintf(
			"You are a business analyst for the GitHub repository %s. "+
				"Gather requirements through focused questions and draft actionable work items "+
				"(issue title plus body). Signal readiness once the requirements are clear.",
			repo,
		)
	}
}

// FinalizePrompt instructs the model to emit the proposed work items as a
// JSON array of {title, body} objects.
const FinalizePrompt = "Produce the final work items for this conversation as a JSON array of objects " +
	`with "title" and "body" fields. Output only the JSON array.`

// Transcript converts visible turn history into chat messages for the agent
// identified by role. User input becomes user messages; system turns and the
// other agent's turns become user messages tagged with their origin, since
// they are context rather than this model's own prior output.
func Transcript(role core.AgentRole, turns []core.Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		switch t.Speaker {
		case core.SpeakerUser:
			msgs = append(msgs, Message{Role: "user", Text: t.Message})
		case core.SpeakerSystem:
			msgs = append(msgs, Message{Role: "user", Text: "[system] " + t.Message})
		case role.Speaker():
			// Own turns are filtered out upstream; tolerate them anyway.
			msgs = append(msgs, Message{Role: "assistant", Text: t.Message})
		default:
			msgs = append(msgs, Message{Role: "user", Text: "[" + string(t.Speaker) + "] " + t.Message})
		}
	}
	return msgs
}

// ParseWorkItems extracts work items from a finalize response. It accepts a
// bare JSON array or one embedded in surrounding prose. When no parseable
// array is found the whole response becomes a single item so finalization
// never silently loses agent output.
func ParseWorkItems(response string) []core.WorkItem {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start >= 0 && end > start {
		var items []core.WorkItem
		if err := json.Unmarshal([]byte(response[start:end+1]), &items); err == nil && len(items) > 0 {
			return items
		}
	}
	return []core.WorkItem{{Title: "Proposed work items", Body: response}}
}
