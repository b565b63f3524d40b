package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomRegistry answers room existence checks for the WebSocket
// handshake. Room CRUD is owned by the REST collaborator; this adapter
// only reads.
type RoomRegistry struct {
	BaseRepository
}

func NewRoomRegistry(pool *pgxpool.Pool) *RoomRegistry {
	return &RoomRegistry{BaseRepository: NewBaseRepository(pool)}
}

// Exists reports whether the room is present and not soft-deleted.
func (r *RoomRegistry) Exists(ctx context.Context, roomID string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM babelroom_rooms
			WHERE id = $1 AND deleted_at IS NULL
		)`

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, query, roomID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return exists, nil
}
