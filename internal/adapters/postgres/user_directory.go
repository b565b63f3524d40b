package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/babelroom/babelroom/internal/domain/models"
)

// UserDirectory reads user records for roster snapshots and language
// defaults.
type UserDirectory struct {
	BaseRepository
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{BaseRepository: NewBaseRepository(pool)}
}

// Get returns the user, or nil when no row exists.
func (r *UserDirectory) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, username, full_name, speaks_languages, understands_languages, created_at
		FROM babelroom_users
		WHERE id = $1`

	var user models.User
	err := r.conn(ctx).QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.SpeaksLanguages,
		&user.UnderstandsLanguages,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.SpeaksLanguages = models.NormalizeLanguages(user.SpeaksLanguages)
	user.UnderstandsLanguages = models.NormalizeLanguages(user.UnderstandsLanguages)
	return &user, nil
}
