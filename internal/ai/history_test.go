package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_ChronologicalOrder(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.AddExchange("hi", "hello"))
	require.NoError(t, h.AddExchange("how are you", "fine"))

	turns := h.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, []Turn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleAssistant, Text: "hello"},
		{Role: RoleUser, Text: "how are you"},
		{Role: RoleAssistant, Text: "fine"},
	}, turns)
}

func TestHistory_AppendRejectsUnknownRole(t *testing.T) {
	h := NewHistory()

	err := h.Append(Turn{Role: "system", Text: "nope"})
	assert.Error(t, err)
	assert.Equal(t, 0, h.Len())

	require.NoError(t, h.Append(UserTurn("ok")))
	assert.Equal(t, 1, h.Len())
}

func TestHistory_TurnsIsACopy(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Append(UserTurn("original")))

	turns := h.Turns()
	turns[0].Text = "mutated"

	assert.Equal(t, "original", h.Turns()[0].Text)
}

func TestPromptValidate(t *testing.T) {
	valid := Prompt{SystemPrompt: "sys", Turns: []Turn{UserTurn("a"), AssistantTurn("b"), UserTurn("c")}}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Prompt{}.Validate())
	assert.Error(t, Prompt{Turns: []Turn{UserTurn("a"), AssistantTurn("b")}}.Validate())
	assert.Error(t, Prompt{Turns: []Turn{{Role: "robot", Text: "x"}, UserTurn("a")}}.Validate())
}
