package database

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is the catalog row for a live chat session. The conversation
// itself stays in memory with the session; only bookkeeping is stored here.
type ChatSession struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title        string    `gorm:"not null"`
	Provider     string    `gorm:"size:20;not null"`
	TurnCount    int       `gorm:"default:0"`
	CreatedAt    time.Time
	LastActiveAt time.Time
}
