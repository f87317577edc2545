package inference

// Role defines message roles in a conversation.
type Role string

const (
	// RoleSystem is for the persona prompt.
	RoleSystem Role = "system"

	// RoleUser is for operator utterances.
	RoleUser Role = "user"

	// RoleAssistant is for the unit's replies.
	RoleAssistant Role = "assistant"
)

// Message represents a chat message in a conversation.
type Message struct {
	// Role identifies the message sender.
	Role Role `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
