package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func TestUserDirectory_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &UserDirectory{BaseRepository: BaseRepository{pool: nil}}
	userID := uuid.New()

	rows := pgxmock.NewRows([]string{
		"id", "username", "full_name", "speaks_languages", "understands_languages", "created_at",
	}).AddRow(userID, "alice", "Alice Santos", []string{"pt-BR"}, []string{"pt-BR", "EN"}, time.Now())

	mock.ExpectQuery("SELECT id, username, full_name").
		WithArgs(userID).
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	user, err := repo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected a user")
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q", user.Username)
	}
	// Region suffixes are stripped on the way out of the database.
	if len(user.SpeaksLanguages) != 1 || user.SpeaksLanguages[0] != "pt" {
		t.Errorf("SpeaksLanguages = %v", user.SpeaksLanguages)
	}
	if len(user.UnderstandsLanguages) != 2 || user.UnderstandsLanguages[1] != "en" {
		t.Errorf("UnderstandsLanguages = %v", user.UnderstandsLanguages)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUserDirectory_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &UserDirectory{BaseRepository: BaseRepository{pool: nil}}
	userID := uuid.New()

	mock.ExpectQuery("SELECT id, username, full_name").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "username", "full_name", "speaks_languages", "understands_languages", "created_at",
		}))

	ctx := setupMockContext(mock)
	user, err := repo.Get(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Error("expected nil user for missing row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
