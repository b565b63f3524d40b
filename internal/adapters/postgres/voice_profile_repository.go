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

// VoiceProfileRepository stores voice cloning sample metadata. The
// audio itself lives on disk; rows only carry the path.
type VoiceProfileRepository struct {
	BaseRepository
}

func NewVoiceProfileRepository(pool *pgxpool.Pool) *VoiceProfileRepository {
	return &VoiceProfileRepository{BaseRepository: NewBaseRepository(pool)}
}

// GetVoiceProfile returns the user's profile, or nil when none exists.
func (r *VoiceProfileRepository) GetVoiceProfile(ctx context.Context, userID uuid.UUID) (*models.VoiceProfile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT user_id, reference_audio_path, language, created_at
		FROM babelroom_voice_profiles
		WHERE user_id = $1`

	var profile models.VoiceProfile
	err := r.conn(ctx).QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.ReferenceAudioPath,
		&profile.Language,
		&profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voice profile: %w", err)
	}
	return &profile, nil
}

// Upsert records or replaces the user's voice sample path.
func (r *VoiceProfileRepository) Upsert(ctx context.Context, profile *models.VoiceProfile) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO babelroom_voice_profiles (
			user_id, reference_audio_path, language, created_at
		) VALUES (
			$1, $2, $3, NOW()
		)
		ON CONFLICT (user_id) DO UPDATE
		SET reference_audio_path = EXCLUDED.reference_audio_path,
		    language = EXCLUDED.language`

	_, err := r.conn(ctx).Exec(ctx, query,
		profile.UserID,
		profile.ReferenceAudioPath,
		profile.Language,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert voice profile: %w", err)
	}
	return nil
}

// Delete removes the user's voice profile row.
func (r *VoiceProfileRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM babelroom_voice_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete voice profile: %w", err)
	}
	return nil
}
