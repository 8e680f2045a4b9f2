// internal/models/chat.go
package models

import "time"

type Role string

const (
	SystemRole    Role = "system"
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

type Sender string

const (
	UserSender Sender = "user"
	BotSender  Sender = "bot"
)

// HistoryMessage is one role-tagged entry of the context sent to the assistant.
type HistoryMessage struct {
	Turn    int    `json:"turn"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DisplayMessage is one bubble of the visible conversation.
type DisplayMessage struct {
	Turn      int       `json:"turn"`
	Sender    Sender    `json:"type"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FoodMode records which picker the participant chose a food from.
type FoodMode string

const (
	NoFoodMode     FoodMode = ""
	SavedFoodMode  FoodMode = "saved"
	RecentFoodMode FoodMode = "recent"
)

type Image struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}
