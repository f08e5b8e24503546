// Package schema defines the data structures shared by the assistant core,
// its HTTP API and its CLI.
package schema

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Profile is the locally asserted identity of the person chatting.
// ID is the trimmed, lowercased email.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one turn in a conversation log. Messages are never edited
// after creation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// Agent describes an assistant persona. The core treats ID as an opaque key.
type Agent struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	Goal        string `json:"goal"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
