// Package voiceprofile resolves a speaker's voice cloning reference by
// combining profile metadata from the database with a filesystem check
// on the recorded sample.
package voiceprofile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/babelroom/babelroom/internal/domain/models"
	"github.com/babelroom/babelroom/internal/ports"
)

// Repository reads voice profile rows. Implemented by the postgres
// adapter.
type Repository interface {
	GetVoiceProfile(ctx context.Context, userID uuid.UUID) (*models.VoiceProfile, error)
}

// Store implements ports.VoiceProfilePort. A profile whose sample file
// is missing on disk counts as absent rather than an error, so stale
// database rows degrade to default-voice synthesis.
type Store struct {
	repo       Repository
	profileDir string
	logger     *slog.Logger
}

var _ ports.VoiceProfilePort = (*Store)(nil)

func New(repo Repository, profileDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, profileDir: profileDir, logger: logger}
}

// Get returns the speaker's voice reference, or nil when no usable
// profile exists.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*models.VoiceReference, error) {
	if s.repo == nil {
		return nil, nil
	}

	profile, err := s.repo.GetVoiceProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("voice profile lookup: %w", err)
	}
	if profile == nil {
		return nil, nil
	}

	path := profile.ReferenceAudioPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.profileDir, path)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		s.logger.Warn("voice sample missing on disk, using default voice",
			"user_id", userID, "path", path)
		return nil, nil
	}

	return &models.VoiceReference{Path: path, Language: profile.Language}, nil
}
