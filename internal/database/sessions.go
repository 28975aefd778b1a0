package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func GetSessions(ctx context.Context, db *gorm.DB) ([]ChatSession, error) {
	var sessions []ChatSession
	err := db.WithContext(ctx).Order("created_at ASC").Find(&sessions).Error
	return sessions, err
}

func CreateSession(ctx context.Context, db *gorm.DB, session *ChatSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func GetSession(ctx context.Context, db *gorm.DB, sessionID uuid.UUID) (ChatSession, error) {
	var session ChatSession
	err := db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	return session, err
}

// RecordTurn bumps the turn count of a session after a successful exchange.
func RecordTurn(ctx context.Context, db *gorm.DB, sessionID uuid.UUID, at time.Time) error {
	result := db.WithContext(ctx).Model(&ChatSession{ID: sessionID}).Updates(map[string]any{
		"turn_count":     gorm.Expr("turn_count + ?", 1),
		"last_active_at": at.UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func DeleteSession(ctx context.Context, db *gorm.DB, sessionID uuid.UUID) error {
	return db.WithContext(ctx).Delete(&ChatSession{}, "id = ?", sessionID).Error
}

func UpdateSessionTitle(ctx context.Context, db *gorm.DB, sessionID uuid.UUID, title string) error {
	result := db.WithContext(ctx).Model(&ChatSession{ID: sessionID}).Update("title", title)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
