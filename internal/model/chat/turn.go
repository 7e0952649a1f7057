package chat

// Role tags the speaker of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn is one message exchanged in the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a turn spoken by the user.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds a turn spoken by the assistant.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Transcript is the ordered conversation history of one session.
type Transcript []Turn

// Clone returns an independent copy of the transcript.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	copied := make(Transcript, len(t))
	copy(copied, t)
	return copied
}
