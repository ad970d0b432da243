package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Schema creates the snapshot table. The statement is portable between
// Postgres and SQLite.
const Schema = `
	CREATE TABLE IF NOT EXISTS cart_snapshots (
		user_id    TEXT PRIMARY KEY,
		payload    BYTEA NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

type postgresRepo struct {
	db     *sql.DB
	sealer *Sealer
	now    func() time.Time
}

// NewPostgresRepository stores sealed snapshots in the cart_snapshots table.
func NewPostgresRepository(db *sql.DB, sealer *Sealer) Repository {
	return &postgresRepo{db: db, sealer: sealer, now: time.Now}
}

// EnsureSchema creates the snapshot table if it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("cart: creating schema: %w", err)
	}
	return nil
}

func (r *postgresRepo) Save(ctx context.Context, userID string, lines []Line) error {
	if len(lines) == 0 {
		return r.Delete(ctx, userID)
	}
	plain, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	payload, err := r.sealer.Seal(plain)
	if err != nil {
		return fmt.Errorf("cart: sealing snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (user_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET payload = excluded.payload, updated_at = excluded.updated_at`,
		userID, payload, r.now().UTC())
	return err
}

func (r *postgresRepo) Load(ctx context.Context, userID string) ([]Line, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM cart_snapshots WHERE user_id = $1`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	plain, err := r.sealer.Open(payload)
	if err != nil {
		return nil, err
	}
	var lines []Line
	if err := json.Unmarshal(plain, &lines); err != nil {
		return nil, fmt.Errorf("cart: decoding snapshot: %w", err)
	}
	return lines, nil
}

func (r *postgresRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_snapshots WHERE user_id = $1`, userID)
	return err
}
