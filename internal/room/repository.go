package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/db"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotParticipant = errors.New("user is not in this room")
)

type Repository interface {
	Create(ctx context.Context, room *Room) (*Participant, error)
	Get(ctx context.Context, roomID string) (*Room, error)
	Exists(ctx context.Context, roomID string) (bool, error)
	AddParticipant(ctx context.Context, roomID, userID string) (*Participant, error)
	MarkLeft(ctx context.Context, roomID, userID string) error
	ActiveParticipants(ctx context.Context, roomID string) ([]Participant, error)
}

type repository struct {
	conn *sqlx.DB
}

func NewRepository(conn *sqlx.DB) Repository {
	return &repository{conn: conn}
}

const participantCols = "id, room_id, user_id, joined_at, left_at"

// Create stores the room and seats its host in one transaction.
func (r *repository) Create(ctx context.Context, room *Room) (*Participant, error) {
	var host Participant
	err := db.WithTx(ctx, r.conn, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO group_room.rooms (id, host_id, agora_channel)
			VALUES ($1, $2, $3)
			RETURNING created_at
		`, room.RoomID, room.HostID, room.Channel).Scan(&room.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO group_room.participants (room_id, user_id)
			VALUES ($1, $2)
			RETURNING `+participantCols,
			room.RoomID, room.HostID).StructScan(&host)
		if err != nil {
			return fmt.Errorf("seat host: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (r *repository) Get(ctx context.Context, roomID string) (*Room, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrRoomNotFound
	}

	var room Room
	err := r.conn.GetContext(ctx, &room, `
		SELECT id, host_id, agora_channel, created_at
		FROM group_room.rooms
		WHERE id = $1
	`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

func (r *repository) Exists(ctx context.Context, roomID string) (bool, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return false, nil
	}
	return db.Exists(ctx, r.conn, `SELECT EXISTS(SELECT 1 FROM group_room.rooms WHERE id = $1)`, roomID)
}

// AddParticipant seats userID, or returns the seat they already hold.
// participants_active_seat_idx allows one active row per user and room.
func (r *repository) AddParticipant(ctx context.Context, roomID, userID string) (*Participant, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrRoomNotFound
	}

	var p Participant
	err := r.conn.QueryRowxContext(ctx, `
		INSERT INTO group_room.participants (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) WHERE left_at IS NULL
		DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+participantCols,
		roomID, userID).StructScan(&p)
	if db.IsForeignKeyViolation(err) || db.IsInvalidText(err) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	return &p, nil
}

func (r *repository) MarkLeft(ctx context.Context, roomID, userID string) error {
	if _, err := uuid.Parse(roomID); err != nil {
		return ErrNotParticipant
	}

	res, err := r.conn.ExecContext(ctx, `
		UPDATE group_room.participants
		SET left_at = NOW()
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL
	`, roomID, userID)
	if db.IsInvalidText(err) {
		return ErrNotParticipant
	}
	if err != nil {
		return fmt.Errorf("mark left: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark left: %w", err)
	}
	if n == 0 {
		return ErrNotParticipant
	}
	return nil
}

func (r *repository) ActiveParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	participants := []Participant{}
	err := r.conn.SelectContext(ctx, &participants, `
		SELECT `+participantCols+`
		FROM group_room.participants
		WHERE room_id = $1 AND left_at IS NULL
		ORDER BY joined_at
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}
