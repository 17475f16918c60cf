package storage

import "time"

// Account is a registered identity in the local registry. Secret is
// stored verbatim in the registry record and must be blanked on every
// copy handed outside the storage and session layers.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Secret    string    `json:"secret,omitempty"`
	About     string    `json:"about,omitempty"`
	AvatarURL string    `json:"avatar"`
	IsPremium bool      `json:"isPremium"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// WithoutSecret returns a copy of the account safe to expose outside
// the registry.
func (a Account) WithoutSecret() Account {
	a.Secret = ""
	return a
}

type Chat struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasParticipant reports whether the account id is a member of the chat.
func (c Chat) HasParticipant(accountID string) bool {
	for _, p := range c.Participants {
		if p == accountID {
			return true
		}
	}
	return false
}

// Message is immutable once created.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPresence marks that a user is composing in a chat. It is pure
// in-memory coordination state and is never persisted.
type TypingPresence struct {
	UserID   string
	Username string
	ChatID   string
}
