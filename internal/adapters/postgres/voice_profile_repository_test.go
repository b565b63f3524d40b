package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/babelroom/babelroom/internal/domain/models"
)

func TestVoiceProfileRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &VoiceProfileRepository{BaseRepository: BaseRepository{pool: nil}}
	userID := uuid.New()

	rows := pgxmock.NewRows([]string{"user_id", "reference_audio_path", "language", "created_at"}).
		AddRow(userID, "samples/alice.wav", "pt", time.Now())

	mock.ExpectQuery("SELECT user_id, reference_audio_path").
		WithArgs(userID).
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	profile, err := repo.GetVoiceProfile(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile == nil {
		t.Fatal("expected a profile")
	}
	if profile.ReferenceAudioPath != "samples/alice.wav" {
		t.Errorf("ReferenceAudioPath = %q", profile.ReferenceAudioPath)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestVoiceProfileRepository_Get_Absent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &VoiceProfileRepository{BaseRepository: BaseRepository{pool: nil}}
	userID := uuid.New()

	mock.ExpectQuery("SELECT user_id, reference_audio_path").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "reference_audio_path", "language", "created_at"}))

	ctx := setupMockContext(mock)
	profile, err := repo.GetVoiceProfile(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile != nil {
		t.Error("expected nil for missing profile")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestVoiceProfileRepository_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &VoiceProfileRepository{BaseRepository: BaseRepository{pool: nil}}
	profile := &models.VoiceProfile{
		UserID:             uuid.New(),
		ReferenceAudioPath: "samples/bob.wav",
		Language:           "en",
	}

	mock.ExpectExec("INSERT INTO babelroom_voice_profiles").
		WithArgs(profile.UserID, profile.ReferenceAudioPath, profile.Language).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Upsert(ctx, profile); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestVoiceProfileRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &VoiceProfileRepository{BaseRepository: BaseRepository{pool: nil}}
	userID := uuid.New()

	mock.ExpectExec("DELETE FROM babelroom_voice_profiles").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ctx := setupMockContext(mock)
	if err := repo.Delete(ctx, userID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
