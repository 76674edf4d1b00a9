package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/issuemesh/core"
)

func TestSystemPrompt(t *testing.T) {
	repo := core.RepoRef{Owner: "octo", Name: "spoon"}
	assert.Contains(t, SystemPrompt(core.RoleBA, repo), "business analyst")
	assert.Contains(t, SystemPrompt(core.RoleTL, repo), "tech lead")
	assert.Contains(t, SystemPrompt(core.RoleTL, repo), "octo/spoon")
}

func TestTranscript(t *testing.T) {
	turns := []core.Turn{
		{Speaker: core.SpeakerUser, Message: "u1"},
		{Speaker: core.SpeakerBA, Message: "ba1"},
		{Speaker: core.SpeakerSystem, Message: "handoff ba -> tl: api"},
	}

	msgs := Transcript(core.RoleTL, turns)
	assert.Equal(t, []Message{
		{Role: "user", Text: "u1"},
		{Role: "user", Text: "[ba] ba1"},
		{Role: "user", Text: "[system] handoff ba -> tl: api"},
	}, msgs)

	// An agent's own turns render as assistant messages if present.
	msgs = Transcript(core.RoleBA, turns)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "ba1", msgs[1].Text)
}

func TestParseWorkItems(t *testing.T) {
	items := ParseWorkItems(`[{"title":"Add login","body":"details"},{"title":"B","body":"c"}]`)
	assert.Len(t, items, 2)
	assert.Equal(t, "Add login", items[0].Title)

	items = ParseWorkItems("Here you go:\n[{\"title\":\"One\",\"body\":\"x\"}]\nDone.")
	assert.Len(t, items, 1)
	assert.Equal(t, "One", items[0].Title)

	items = ParseWorkItems("no json at all")
	assert.Len(t, items, 1)
	assert.Equal(t, "Proposed work items", items[0].Title)
	assert.Equal(t, "no json at all", items[0].Body)
}
