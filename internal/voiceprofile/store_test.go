package voiceprofile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/babelroom/babelroom/internal/domain/models"
)

type stubRepo struct {
	profile *models.VoiceProfile
	err     error
}

func (s *stubRepo) GetVoiceProfile(ctx context.Context, userID uuid.UUID) (*models.VoiceProfile, error) {
	return s.profile, s.err
}

func TestGetReturnsReferenceWhenSampleExists(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "sample.wav")
	if err := os.WriteFile(sample, []byte("riff"), 0o600); err != nil {
		t.Fatal(err)
	}

	userID := uuid.New()
	store := New(&stubRepo{profile: &models.VoiceProfile{
		UserID:             userID,
		ReferenceAudioPath: "sample.wav",
		Language:           "pt",
	}}, dir, nil)

	ref, err := store.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ref == nil {
		t.Fatal("expected a voice reference")
	}
	if ref.Path != sample {
		t.Errorf("Path = %q, want %q", ref.Path, sample)
	}
	if ref.Language != "pt" {
		t.Errorf("Language = %q", ref.Language)
	}
}

func TestGetAbsentProfile(t *testing.T) {
	store := New(&stubRepo{}, t.TempDir(), nil)
	ref, err := store.Get(context.Background(), uuid.New())
	if err != nil || ref != nil {
		t.Errorf("Get = %v, %v; want nil, nil", ref, err)
	}
}

func TestGetMissingFileDegradesToNil(t *testing.T) {
	store := New(&stubRepo{profile: &models.VoiceProfile{
		UserID:             uuid.New(),
		ReferenceAudioPath: "gone.wav",
	}}, t.TempDir(), nil)

	ref, err := store.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ref != nil {
		t.Error("missing sample file should yield nil reference")
	}
}

func TestGetEmptyFileDegradesToNil(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "empty.wav"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	store := New(&stubRepo{profile: &models.VoiceProfile{
		UserID:             uuid.New(),
		ReferenceAudioPath: "empty.wav",
	}}, dir, nil)

	ref, err := store.Get(context.Background(), uuid.New())
	if err != nil || ref != nil {
		t.Errorf("Get = %v, %v; want nil, nil", ref, err)
	}
}

func TestGetRepositoryError(t *testing.T) {
	store := New(&stubRepo{err: errors.New("connection reset")}, t.TempDir(), nil)
	if _, err := store.Get(context.Background(), uuid.New()); err == nil {
		t.Error("expected error from repository")
	}
}
