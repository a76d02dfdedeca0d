package ai

import "fmt"

// History is an in-memory, append-only record of a conversation in chronological order
type History struct {
	turns []Turn
}

func NewHistory() *History {
	return &History{}
}

// Append adds a turn, rejecting unknown roles
func (h *History) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("invalid role '%s'", turn.Role)
	}
	h.turns = append(h.turns, turn)
	return nil
}

// AddExchange records a user turn and the assistant's reply to it
func (h *History) AddExchange(userText, assistantText string) error {
	if err := h.Append(UserTurn(userText)); err != nil {
		return err
	}
	return h.Append(AssistantTurn(assistantText))
}

// Turns returns a copy of the recorded turns
func (h *History) Turns() []Turn {
	turns := make([]Turn, len(h.turns))
	copy(turns, h.turns)
	return turns
}

func (h *History) Len() int {
	return len(h.turns)
}
