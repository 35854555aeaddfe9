package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/types"
)

// SessionRepository handles persistence for login sessions and password
// recoveries.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	session.ID = uuid.NewString()
	session.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO sessions (id, user_id, provider, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Provider,
		session.CreatedAt,
		session.ExpiresAt,
	); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// Get returns a session that has not expired yet.
func (r *SessionRepository) Get(ctx context.Context, id string) (types.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Session{}, ErrNotFound
	}
	const query = `
		SELECT id, user_id, provider, created_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > $2`
	var session types.Session
	err := r.db.QueryRowContext(ctx, query, id, time.Now().UTC()).Scan(
		&session.ID,
		&session.UserID,
		&session.Provider,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	return session, nil
}

// DeleteByUser removes every session of the user and reports how many were
// removed.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SessionRepository) CreateRecovery(ctx context.Context, recovery types.Recovery) (types.Recovery, error) {
	recovery.ID = uuid.NewString()
	recovery.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO recoveries (id, user_id, secret_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		recovery.ID,
		recovery.UserID,
		recovery.SecretHash,
		recovery.CreatedAt,
		recovery.ExpiresAt,
	); err != nil {
		return types.Recovery{}, err
	}
	return recovery, nil
}

// ConsumeRecovery deletes the unexpired recovery matching the user and secret
// hash. It returns ErrNotFound when nothing matched.
func (r *SessionRepository) ConsumeRecovery(ctx context.Context, userID, secretHash string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrNotFound
	}
	const query = `
		DELETE FROM recoveries
		WHERE user_id = $1 AND secret_hash = $2 AND expires_at > $3`
	result, err := r.db.ExecContext(ctx, query, userID, secretHash, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
