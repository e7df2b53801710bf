// Package postgres implements storage.IdentityStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrCodeEU/facelogin/pkg/logging"
	"github.com/MrCodeEU/facelogin/pkg/recognition"
	"github.com/MrCodeEU/facelogin/pkg/storage"
)

// Store keeps user records in the face_users table.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Component("storage").WithField("backend", "postgres").Info("Connected to identity database")
	return &Store{pool: pool}, nil
}

// initSchema creates the users table if it doesn't exist.
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS face_users (
			user_id TEXT PRIMARY KEY,
			features DOUBLE PRECISION[] NOT NULL,
			registered_at TIMESTAMPTZ NOT NULL,
			last_login TIMESTAMPTZ,
			login_count INT NOT NULL DEFAULT 0,
			enrollment_id TEXT NOT NULL DEFAULT '',
			detection JSONB NOT NULL DEFAULT '{}'
		)
	`)
	return err
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const selectColumns = `SELECT user_id, features, registered_at, last_login, login_count, enrollment_id, detection FROM face_users`

func scanRecord(row pgx.Row) (*storage.UserRecord, error) {
	var (
		rec      storage.UserRecord
		features []float64
	)
	err := row.Scan(&rec.UserID, &features, &rec.RegisteredAt, &rec.LastLogin, &rec.LoginCount, &rec.EnrollmentID, &rec.Detection)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(features) != recognition.FeatureVectorSize {
		return nil, fmt.Errorf("user %s: expected %d features, got %d", rec.UserID, recognition.FeatureVectorSize, len(features))
	}
	copy(rec.Features[:], features)
	return &rec, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, userID string) (*storage.UserRecord, error) {
	return scanRecord(s.pool.QueryRow(ctx, selectColumns+` WHERE user_id = $1`, userID))
}

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, rec storage.UserRecord) error {
	if err := storage.ValidateUserID(rec.UserID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO face_users (user_id, features, registered_at, last_login, login_count, enrollment_id, detection)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			features = EXCLUDED.features,
			registered_at = EXCLUDED.registered_at,
			last_login = EXCLUDED.last_login,
			login_count = EXCLUDED.login_count,
			enrollment_id = EXCLUDED.enrollment_id,
			detection = EXCLUDED.detection
	`, rec.UserID, rec.Features[:], rec.RegisteredAt, rec.LastLogin, rec.LoginCount, rec.EnrollmentID, rec.Detection)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", rec.UserID, err)
	}
	return nil
}

// List returns every record ordered by user id.
func (s *Store) List(ctx context.Context) ([]storage.UserRecord, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	records := []storage.UserRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes it back.
func (s *Store) Update(ctx context.Context, userID string, fn func(*storage.UserRecord) error) (*storage.UserRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec, err := scanRecord(tx.QueryRow(ctx, selectColumns+` WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, err
	}

	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.UserID = userID

	_, err = tx.Exec(ctx, `
		UPDATE face_users
		SET features = $2, registered_at = $3, last_login = $4, login_count = $5, enrollment_id = $6, detection = $7
		WHERE user_id = $1
	`, rec.UserID, rec.Features[:], rec.RegisteredAt, rec.LastLogin, rec.LoginCount, rec.EnrollmentID, rec.Detection)
	if err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM face_users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}
