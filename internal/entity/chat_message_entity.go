package entity

import (
	"time"

	"spaces-client/internal/constant"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageKindNormal MessageKind = "normal"
	MessageKindError  MessageKind = "error"
)

// Citation points a bot answer at the source material it used.
type Citation struct {
	Source string
	Page   int
	Text   string
}

type ChatMessage struct {
	Id        uuid.UUID
	Sender    string
	Text      string
	Citations []Citation
	Kind      MessageKind
	// Timestamp is nil for freshly composed messages and set for history entries.
	Timestamp *time.Time
}

func (m ChatMessage) IsUser() bool {
	return m.Sender == constant.ChatSenderUser
}

func (m ChatMessage) IsHistory() bool {
	return m.Timestamp != nil
}
