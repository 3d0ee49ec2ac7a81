// Package repository persists chat transcripts per user and language.
package repository

import (
	"context"

	"health-assistant/internal/domain"
)

// Store is an append-only transcript log. List returns messages oldest first.
type Store interface {
	Append(ctx context.Context, userID string, lang domain.Language, msg domain.Message) error
	List(ctx context.Context, userID string, lang domain.Language) ([]domain.Message, error)
}
