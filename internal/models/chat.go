package models

import "time"

// ChatRole identifies the author kind of a chat message. The values mirror
// the roles replayed to the narration service.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatMessage is one entry of the append-only room chat log. Messages are
// ordered by ascending Timestamp and are never mutated or deleted.
type ChatMessage struct {
	ID        string    `firestore:"id" json:"id"`
	Role      ChatRole  `firestore:"role" json:"role"`
	Content   string    `firestore:"content" json:"content"`
	Sender    string    `firestore:"sender,omitempty" json:"sender,omitempty"`
	IsAction  bool      `firestore:"isAction" json:"isAction"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}
