package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

const roomColumns = `id, room_code, status, player1_id, player2_id, created_at, started_at, ended_at`

// RoomRepository implements store.RoomStore over the game_rooms table.
type RoomRepository struct {
	db    *pgxpool.Pool
	codes store.CodeGenerator
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool; codes must be non-nil.
func NewRoomRepository(db *pgxpool.Pool, codes store.CodeGenerator) *RoomRepository {
	return &RoomRepository{db: db, codes: codes}
}

// Create inserts a WAITING room owned by ownerID.
func (r *RoomRepository) Create(ctx context.Context, ownerID int64, at time.Time) (store.Room, error) {
	room, err := scanRoom(r.db.QueryRow(ctx,
		`INSERT INTO game_rooms (room_code, status, player1_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+roomColumns,
		r.codes.Next(), int16(store.RoomWaiting), ownerID, at,
	))
	if err != nil {
		return store.Room{}, fmt.Errorf("inserting room: %w", err)
	}
	return room, nil
}

// FindWaitingByCode returns the lowest-id WAITING room with code.
func (r *RoomRepository) FindWaitingByCode(ctx context.Context, code string) (store.Room, error) {
	return r.queryOne(ctx,
		`SELECT `+roomColumns+` FROM game_rooms
		 WHERE room_code = $1 AND status = $2
		 ORDER BY id LIMIT 1`,
		code, int16(store.RoomWaiting))
}

// FindByCodeAndMember returns the lowest-id room with code that playerID occupies.
func (r *RoomRepository) FindByCodeAndMember(ctx context.Context, code string, playerID int64) (store.Room, error) {
	return r.queryOne(ctx,
		`SELECT `+roomColumns+` FROM game_rooms
		 WHERE room_code = $1 AND (player1_id = $2 OR player2_id = $2)
		 ORDER BY id LIMIT 1`,
		code, playerID)
}

// Get retrieves a room by id.
func (r *RoomRepository) Get(ctx context.Context, id int64) (store.Room, error) {
	return r.queryOne(ctx, `SELECT `+roomColumns+` FROM game_rooms WHERE id = $1`, id)
}

// Update overwrites the mutable columns of room.
func (r *RoomRepository) Update(ctx context.Context, room store.Room) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE game_rooms
		 SET room_code = $2, status = $3, player1_id = $4, player2_id = $5,
		     started_at = $6, ended_at = $7
		 WHERE id = $1`,
		room.ID, room.Code, int16(room.Status), room.Player1ID,
		nullID(room.Player2ID), nullTime(room.StartedAt), nullTime(room.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("updating room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

// Delete removes a room.
func (r *RoomRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM game_rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

// ListWaitingWithOpenSlot returns joinable rooms ordered by id.
func (r *RoomRepository) ListWaitingWithOpenSlot(ctx context.Context) ([]store.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+roomColumns+` FROM game_rooms
		 WHERE status = $1 AND player2_id IS NULL
		 ORDER BY id`,
		int16(store.RoomWaiting))
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]store.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return rooms, nil
}

func (r *RoomRepository) queryOne(ctx context.Context, sql string, args ...any) (store.Room, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Room{}, store.ErrRoomNotFound
		}
		return store.Room{}, fmt.Errorf("querying room: %w", err)
	}
	return room, nil
}

func scanRoom(row pgx.Row) (store.Room, error) {
	var (
		room           store.Room
		status         int16
		player2        *int64
		started, ended *time.Time
	)
	err := row.Scan(&room.ID, &room.Code, &status, &room.Player1ID, &player2,
		&room.CreatedAt, &started, &ended)
	if err != nil {
		return store.Room{}, err
	}
	room.Status = store.RoomStatus(status)
	if player2 != nil {
		room.Player2ID = *player2
	}
	if started != nil {
		room.StartedAt = *started
	}
	if ended != nil {
		room.EndedAt = *ended
	}
	return room, nil
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ store.RoomStore = (*RoomRepository)(nil)
