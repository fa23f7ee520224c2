package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/yourname/fixyoursleep/internal"
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Errorf("failed to ping postgres: %v", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := runMigrations(db, "postgres", "postgres"); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// --- ProfileStore ---
func (p *PostgresStorage) GetProfile(ctx context.Context, userID string) (*internal.GoalProfile, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, user_name, email, COALESCE(bed_time, ''), COALESCE(wake_time, ''), created_at, updated_at FROM profiles WHERE id = $1`, userID)
	var g internal.GoalProfile
	if err := row.Scan(&g.UserID, &g.UserName, &g.Email, &g.BedTime, &g.WakeTime, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
		}
		p.logger.Errorf("failed to query profile: %v", err)
		return nil, err
	}
	if err := validateGoalPair(g.BedTime, g.WakeTime); err != nil {
		return nil, err
	}
	return &g, nil
}

func (p *PostgresStorage) PutProfile(ctx context.Context, profile *internal.GoalProfile) (*internal.GoalProfile, error) {
	if err := validateGoalPair(profile.BedTime, profile.WakeTime); err != nil {
		return nil, err
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO profiles (id, user_name, email, bed_time, wake_time, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		ON CONFLICT (id) DO UPDATE SET user_name = EXCLUDED.user_name, email = EXCLUDED.email,
			bed_time = EXCLUDED.bed_time, wake_time = EXCLUDED.wake_time, updated_at = EXCLUDED.updated_at`,
		profile.UserID, profile.UserName, profile.Email, profile.BedTime, profile.WakeTime, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		p.logger.Errorf("failed to upsert profile: %v", err)
		return nil, err
	}
	cp := *profile
	return &cp, nil
}

func (p *PostgresStorage) UpdateGoalFields(ctx context.Context, userID string, fields internal.GoalFields) error {
	tag, err := p.pool.Exec(ctx, `UPDATE profiles SET bed_time = COALESCE($2, bed_time), wake_time = COALESCE($3, wake_time), updated_at = now() WHERE id = $1`,
		userID, fields.BedTime, fields.WakeTime)
	if err != nil {
		p.logger.Errorf("failed to update goal: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
	}
	return nil
}

// --- SleepLogStore ---
func (p *PostgresStorage) SaveSleepLog(ctx context.Context, userID string, entry *internal.SleepLogEntry) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO sleep_logs (id, user_id, date, is_completed, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET date = EXCLUDED.date, is_completed = EXCLUDED.is_completed`,
		entry.ID, userID, entry.Date, entry.IsCompleted, entry.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert sleep log: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) ListSleepLogs(ctx context.Context, userID string) ([]internal.SleepLogEntry, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, user_id, date, is_completed, created_at FROM sleep_logs WHERE user_id = $1 ORDER BY date DESC`, userID)
	if err != nil {
		p.logger.Errorf("failed to query sleep logs: %v", err)
		return nil, err
	}
	defer rows.Close()

	logs := []internal.SleepLogEntry{}
	for rows.Next() {
		var l internal.SleepLogEntry
		if err := rows.Scan(&l.ID, &l.UserID, &l.Date, &l.IsCompleted, &l.CreatedAt); err != nil {
			p.logger.Errorf("failed to scan sleep log: %v", err)
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (p *PostgresStorage) DeleteSleepLog(ctx context.Context, userID, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sleep_logs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		p.logger.Errorf("failed to delete sleep log: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: sleep log %s: %w", id, internal.ErrNotFound)
	}
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*PostgresStorage)(nil)
