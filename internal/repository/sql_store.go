package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"health-assistant/internal/domain"
)

type chatMessage struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"size:128;not null;index:idx_chat_messages_thread,priority:1"`
	Language  string    `gorm:"size:32;not null;index:idx_chat_messages_thread,priority:2"`
	Role      string    `gorm:"size:16;not null"`
	Content   string    `gorm:"type:text;not null"`
	ImageURL  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index:idx_chat_messages_thread,priority:3"`
}

func (chatMessage) TableName() string {
	return "chat_messages"
}

// OpenDB connects to postgres (dsn) or sqlite (file path).
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("repository: unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: connect to database: %w", err)
	}
	return db, nil
}

// SQLStore keeps transcripts in a single chat_messages table.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLStore migrates the schema and returns the store.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	if err := db.AutoMigrate(&chatMessage{}); err != nil {
		return nil, fmt.Errorf("repository: migrate: %w", err)
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Append(ctx context.Context, userID string, lang domain.Language, msg domain.Message) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("repository: Append: user id is required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	row := chatMessage{
		UserID:    userID,
		Language:  string(lang),
		Role:      string(msg.Role),
		Content:   msg.Content,
		ImageURL:  msg.ImageURL,
		CreatedAt: msg.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, userID string, lang domain.Language) ([]domain.Message, error) {
	var rows []chatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND language = ?", userID, string(lang)).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repository: List: %w", err)
	}

	msgs := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, domain.Message{
			Role:      domain.Role(r.Role),
			Content:   r.Content,
			ImageURL:  r.ImageURL,
			CreatedAt: r.CreatedAt,
		})
	}
	return msgs, nil
}
