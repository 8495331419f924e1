package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is the read-side view of an archived chat message.
// Content is stored post-censoring; messages are immutable.
type Message struct {
	ID        uuid.UUID
	Author    string
	Content   string
	Media     bool
	CreatedAt time.Time
}
