// Package ai holds the conversation model shared by the chat loop and the model adapter.
package ai

import "fmt"

// Role identifies who authored a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one role-tagged message in a conversation
type Turn struct {
	Role Role
	Text string
}

func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// Prompt is a system instruction followed by the turns to send, the last of which is the latest user turn
type Prompt struct {
	SystemPrompt string
	Turns        []Turn
}

// Validate checks that every turn has a known role and that the prompt ends with a user turn
func (p Prompt) Validate() error {
	if len(p.Turns) == 0 {
		return fmt.Errorf("prompt has no turns")
	}
	for i, turn := range p.Turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("turn %d has invalid role '%s'", i, turn.Role)
		}
	}
	if last := p.Turns[len(p.Turns)-1]; last.Role != RoleUser {
		return fmt.Errorf("prompt must end with a user turn, got '%s'", last.Role)
	}
	return nil
}

// Usage is the token accounting reported for one response
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Reply is the full text of a model response
type Reply struct {
	Text       string
	StopReason string
	Usage      Usage
}
