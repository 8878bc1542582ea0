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

const playerColumns = `id, username, password_hash, nickname, score, created_at, last_login_at`

// PlayerRepository implements store.PlayerStore over the players table.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Create inserts a new player with a bcrypt-hashed password.
//
// Precondition: Username and Password must be non-empty.
// Postcondition: Returns the created Player with ID and CreatedAt set,
// or store.ErrUsernameTaken if the username is taken.
func (r *PlayerRepository) Create(ctx context.Context, np store.NewPlayer) (store.Player, error) {
	hash, err := store.HashPassword(np.Password)
	if err != nil {
		return store.Player{}, fmt.Errorf("hashing password: %w", err)
	}

	p, err := scanPlayer(r.db.QueryRow(ctx,
		`INSERT INTO players (username, password_hash, nickname)
		 VALUES ($1, $2, $3)
		 RETURNING `+playerColumns,
		np.Username, hash, np.Nickname,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.Player{}, store.ErrUsernameTaken
		}
		return store.Player{}, fmt.Errorf("inserting player: %w", err)
	}
	return p, nil
}

// FindByCredentials verifies credentials and returns the matching player.
//
// Postcondition: Returns the Player if credentials are valid, or
// store.ErrInvalidCredentials for an unknown username or wrong password.
func (r *PlayerRepository) FindByCredentials(ctx context.Context, username, password string) (store.Player, error) {
	p, err := r.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrPlayerNotFound) {
		return store.Player{}, store.ErrInvalidCredentials
	}
	if err != nil {
		return store.Player{}, err
	}
	if !store.CheckPassword(password, p.PasswordHash) {
		return store.Player{}, store.ErrInvalidCredentials
	}
	return p, nil
}

// FindByUsername retrieves a player by username.
//
// Postcondition: Returns the Player or store.ErrPlayerNotFound.
func (r *PlayerRepository) FindByUsername(ctx context.Context, username string) (store.Player, error) {
	p, err := scanPlayer(r.db.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Player{}, store.ErrPlayerNotFound
		}
		return store.Player{}, fmt.Errorf("querying player: %w", err)
	}
	return p, nil
}

// Get retrieves a player by id.
//
// Postcondition: Returns the Player or store.ErrPlayerNotFound.
func (r *PlayerRepository) Get(ctx context.Context, id int64) (store.Player, error) {
	p, err := scanPlayer(r.db.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Player{}, store.ErrPlayerNotFound
		}
		return store.Player{}, fmt.Errorf("querying player: %w", err)
	}
	return p, nil
}

// TouchLastLogin records a login time.
func (r *PlayerRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE players SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrPlayerNotFound
	}
	return nil
}

// AddScore adds delta to the player's score in a single statement.
func (r *PlayerRepository) AddScore(ctx context.Context, id int64, delta int32) error {
	tag, err := r.db.Exec(ctx, `UPDATE players SET score = score + $1 WHERE id = $2`, delta, id)
	if err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrPlayerNotFound
	}
	return nil
}

func scanPlayer(row pgx.Row) (store.Player, error) {
	var (
		p         store.Player
		lastLogin *time.Time
	)
	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.Nickname, &p.Score, &p.CreatedAt, &lastLogin)
	if err != nil {
		return store.Player{}, err
	}
	if lastLogin != nil {
		p.LastLoginAt = *lastLogin
	}
	return p, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// SQLSTATE 23505 is unique_violation
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

var _ store.PlayerStore = (*PlayerRepository)(nil)
