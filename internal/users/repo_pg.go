package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"goalsectors-backend/internal/planner"
	"goalsectors-backend/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Ensure(ctx context.Context, userID string) (User, error) {
	const insertUser = `
INSERT INTO users (id, created_at, updated_at)
VALUES ($1, now(), now())
ON CONFLICT (id) DO NOTHING`
	const insertSector = `
INSERT INTO sectors_enabled (user_id, sector)
VALUES ($1, $2)
ON CONFLICT (user_id, sector) DO NOTHING`

	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertUser, userID)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		created, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if created == 0 {
			return nil
		}
		for _, s := range DefaultSectors() {
			if _, err := tx.ExecContext(ctx, insertSector, userID, string(s)); err != nil {
				return fmt.Errorf("insert default sector: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return r.GetByID(ctx, userID)
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const userQuery = `
SELECT id, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1`
	const sectorQuery = `
SELECT sector
FROM sectors_enabled
WHERE user_id = $1`

	var user User
	var updatedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, userQuery, userID).Scan(&user.ID, &user.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if updatedAt.Valid {
		user.UpdatedAt = updatedAt.Time
	} else {
		user.UpdatedAt = user.CreatedAt
	}

	rows, err := r.DB.QueryContext(ctx, sectorQuery, userID)
	if err != nil {
		return User{}, fmt.Errorf("list sectors: %w", err)
	}
	defer rows.Close()
	enabled := map[planner.Sector]bool{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return User{}, err
		}
		if s, err := planner.ParseSector(raw); err == nil {
			enabled[s] = true
		}
	}
	if err := rows.Err(); err != nil {
		return User{}, err
	}
	user.EnabledSectors = []planner.Sector{}
	for _, s := range planner.AllSectors {
		if enabled[s] {
			user.EnabledSectors = append(user.EnabledSectors, s)
		}
	}
	return user, nil
}

func (r *PGRepo) SetEnabledSectors(ctx context.Context, userID string, sectors []planner.Sector) error {
	const touchUser = `UPDATE users SET updated_at = now() WHERE id = $1`
	const clearSectors = `DELETE FROM sectors_enabled WHERE user_id = $1`
	const insertSector = `INSERT INTO sectors_enabled (user_id, sector) VALUES ($1, $2)`

	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, touchUser, userID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, clearSectors, userID); err != nil {
			return fmt.Errorf("clear sectors: %w", err)
		}
		for _, s := range sectors {
			if _, err := tx.ExecContext(ctx, insertSector, userID, string(s)); err != nil {
				return fmt.Errorf("insert sector: %w", err)
			}
		}
		return nil
	})
}
