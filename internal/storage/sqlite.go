package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourname/fixyoursleep/internal"
)

type SQLiteStorage struct {
	db     *sql.DB
	logger internal.Logger
}

func NewSQLiteStorage(path string, logger internal.Logger) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		logger.Errorf("failed to open sqlite: %v", err)
		return nil, err
	}
	// Single writer; modernc serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db, "sqlite3", "sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Fixed-width so that ORDER BY on the text column sorts chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", internal.ErrInvalidDocument, err)
	}
	return t, nil
}

// --- ProfileStore ---
func (s *SQLiteStorage) GetProfile(ctx context.Context, userID string) (*internal.GoalProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_name, email, COALESCE(bed_time, ''), COALESCE(wake_time, ''), created_at, updated_at FROM profiles WHERE id = ?`, userID)
	var (
		g                internal.GoalProfile
		created, updated string
	)
	if err := row.Scan(&g.UserID, &g.UserName, &g.Email, &g.BedTime, &g.WakeTime, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
		}
		s.logger.Errorf("failed to query profile: %v", err)
		return nil, err
	}
	var err error
	if g.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if err := validateGoalPair(g.BedTime, g.WakeTime); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SQLiteStorage) PutProfile(ctx context.Context, profile *internal.GoalProfile) (*internal.GoalProfile, error) {
	if err := validateGoalPair(profile.BedTime, profile.WakeTime); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles (id, user_name, email, bed_time, wake_time, created_at, updated_at)
		VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?)
		ON CONFLICT (id) DO UPDATE SET user_name = excluded.user_name, email = excluded.email,
			bed_time = excluded.bed_time, wake_time = excluded.wake_time, updated_at = excluded.updated_at`,
		profile.UserID, profile.UserName, profile.Email, profile.BedTime, profile.WakeTime,
		formatTime(profile.CreatedAt), formatTime(profile.UpdatedAt))
	if err != nil {
		s.logger.Errorf("failed to upsert profile: %v", err)
		return nil, err
	}
	cp := *profile
	return &cp, nil
}

func (s *SQLiteStorage) UpdateGoalFields(ctx context.Context, userID string, fields internal.GoalFields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bed, wake string
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(bed_time, ''), COALESCE(wake_time, '') FROM profiles WHERE id = ?`, userID).Scan(&bed, &wake)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
		}
		return err
	}
	if fields.BedTime != nil {
		bed = *fields.BedTime
	}
	if fields.WakeTime != nil {
		wake = *fields.WakeTime
	}
	if err := validateGoalPair(bed, wake); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET bed_time = NULLIF(?, ''), wake_time = NULLIF(?, ''), updated_at = ? WHERE id = ?`,
		bed, wake, formatTime(time.Now()), userID); err != nil {
		s.logger.Errorf("failed to update goal: %v", err)
		return err
	}
	return tx.Commit()
}

// --- SleepLogStore ---
func (s *SQLiteStorage) SaveSleepLog(ctx context.Context, userID string, entry *internal.SleepLogEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sleep_logs (id, user_id, date, is_completed, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET date = excluded.date, is_completed = excluded.is_completed`,
		entry.ID, userID, formatTime(entry.Date), entry.IsCompleted, formatTime(entry.CreatedAt))
	if err != nil {
		s.logger.Errorf("failed to insert sleep log: %v", err)
		return err
	}
	return nil
}

func (s *SQLiteStorage) ListSleepLogs(ctx context.Context, userID string) ([]internal.SleepLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, date, is_completed, created_at FROM sleep_logs WHERE user_id = ? ORDER BY date DESC`, userID)
	if err != nil {
		s.logger.Errorf("failed to query sleep logs: %v", err)
		return nil, err
	}
	defer rows.Close()

	logs := []internal.SleepLogEntry{}
	for rows.Next() {
		var (
			l             internal.SleepLogEntry
			date, created string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &date, &l.IsCompleted, &created); err != nil {
			s.logger.Errorf("failed to scan sleep log: %v", err)
			return nil, err
		}
		if l.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStorage) DeleteSleepLog(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sleep_logs WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		s.logger.Errorf("failed to delete sleep log: %v", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: sleep log %s: %w", id, internal.ErrNotFound)
	}
	return nil
}

// --- Compile-time assertions ---
var _ Store = (*SQLiteStorage)(nil)
