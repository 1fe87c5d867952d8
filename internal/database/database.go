package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"imobiliaria/web/internal/models"
)

// SessionRecord is the persisted form of a browser session.
type SessionRecord struct {
	Key       string `gorm:"column:session_key;primaryKey;size:64"`
	Token     string `gorm:"not null"`
	Role      string `gorm:"size:16"`
	SubjectID int64
	Subject   string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

func (SessionRecord) TableName() string {
	return "sessions"
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// NewTestDB opens a private in-memory database.
func NewTestDB() (*Database, error) {
	d, err := NewDatabase(":memory:")
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: sees its own database
	sqlDB, err := d.db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return d, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// LoadSession returns the state persisted under key. The boolean is false when nothing is stored.
func (d *Database) LoadSession(ctx context.Context, key string) (models.SessionState, bool, error) {
	var record SessionRecord
	err := d.db.WithContext(ctx).Where("session_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SessionState{}, false, nil
	}
	if err != nil {
		return models.SessionState{}, false, fmt.Errorf("failed to load session: %w", err)
	}

	return models.SessionState{
		Token:         record.Token,
		Role:          models.Role(record.Role),
		SubjectID:     record.SubjectID,
		Subject:       record.Subject,
		ExpiresAt:     record.ExpiresAt,
		Authenticated: record.Token != "",
	}, true, nil
}

// SaveSession upserts the state under key.
func (d *Database) SaveSession(ctx context.Context, key string, state models.SessionState) error {
	record := SessionRecord{
		Key:       key,
		Token:     state.Token,
		Role:      string(state.Role),
		SubjectID: state.SubjectID,
		Subject:   state.Subject,
		ExpiresAt: state.ExpiresAt.UTC(),
	}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteSession removes the state under key. Deleting a missing key is not an error.
func (d *Database) DeleteSession(ctx context.Context, key string) error {
	if err := d.db.WithContext(ctx).Where("session_key = ?", key).Delete(&SessionRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions whose token expired before the given time.
func (d *Database) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Time{}, before.UTC()).
		Delete(&SessionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
