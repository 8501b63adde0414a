// Package ledger keeps an append-only history of published titles in SQL.
//
// The ledger is an audit trail. The channel index stays the source of truth
// for deciding what to upload; a ledger failure never fails an upload.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"channel-publisher/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one published title.
type Entry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TitleKey    string    `gorm:"column:title_key;size:512;uniqueIndex" json:"key"`
	Title       string    `gorm:"column:title;size:1024" json:"title"`
	Category    string    `gorm:"column:category;size:255" json:"category"`
	Channel     string    `gorm:"column:channel;size:255" json:"channel"`
	MessageID   int64     `gorm:"column:message_id" json:"message_id"`
	FileName    string    `gorm:"column:file_name;size:1024" json:"file_name"`
	PublishedAt time.Time `gorm:"column:published_at;index" json:"published_at"`
}

// TableName overrides the table name used by Entry.
func (Entry) TableName() string {
	return "published_titles"
}

var requiredColumns = []string{"id", "title_key", "title", "category", "channel", "message_id", "file_name", "published_at"}

// Ledger records published titles.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open prepares the ledger table. With autoMigrate the table is created or
// updated; otherwise it must already have every column.
func Open(db *gorm.DB, autoMigrate bool, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if autoMigrate {
		if err := db.AutoMigrate(&Entry{}); err != nil {
			return nil, fmt.Errorf("failed to migrate ledger table: %w", err)
		}
	} else {
		missing, err := database.MissingColumns(db, Entry{}.TableName(), requiredColumns)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect ledger table: %w", err)
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("ledger table %s is missing columns: %s", Entry{}.TableName(), strings.Join(missing, ", "))
		}
	}
	return &Ledger{db: db, logger: logger}, nil
}

// Record stores e. A title published again replaces the earlier entry.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.PublishedAt.IsZero() {
		e.PublishedAt = time.Now().UTC()
	}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "title_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "category", "channel", "message_id", "file_name", "published_at"}),
		}).
		Create(&e).Error
	if err != nil {
		return fmt.Errorf("failed to record %q in ledger: %w", e.TitleKey, err)
	}
	l.logger.Debug("Ledger entry recorded", zap.String("key", e.TitleKey), zap.Int64("message_id", e.MessageID))
	return nil
}

// Has reports whether key was ever recorded.
func (l *Ledger) Has(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := l.db.WithContext(ctx).Model(&Entry{}).Where("title_key = ?", key).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return count > 0, nil
}

// Entries returns every entry, oldest first.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := l.db.WithContext(ctx).Order("published_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return entries, nil
}
