// Package db provides PostgreSQL storage for crawl runs and member records.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/handle-crawler/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id            UUID PRIMARY KEY,
	directory_url TEXT NOT NULL,
	status        TEXT NOT NULL,
	stats         JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS member_records (
	run_id     UUID NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
	nickname   TEXT NOT NULL,
	position   INTEGER NOT NULL,
	fullname   TEXT NOT NULL,
	telegram   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, nickname)
);

CREATE INDEX IF NOT EXISTS member_records_run_position_idx ON member_records (run_id, position);
`

// EnsureSchema creates the crawler tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// CreateRun creates a crawl run record with status running.
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, directoryURL string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO crawl_runs (id, directory_url, status)
		 VALUES ($1, $2, $3)`,
		runID, directoryURL, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun records the final status and counters of a crawl run.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, stats *types.RunStats) error {
	var statsJSON []byte
	if stats != nil {
		var err error
		if statsJSON, err = json.Marshal(stats); err != nil {
			return fmt.Errorf("failed to marshal run stats: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`UPDATE crawl_runs SET status = $1, stats = $2, completed_at = NOW() WHERE id = $3`,
		status, statsJSON, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a crawl run by ID. Returns nil if not found.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var statsJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, directory_url, status, stats, created_at, completed_at
		 FROM crawl_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.DirectoryURL, &run.Status, &statsJSON, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if len(statsJSON) > 0 {
		run.Stats = &types.RunStats{}
		if err := json.Unmarshal(statsJSON, run.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
		}
	}
	return &run, nil
}

// SaveMember stores a member record for a run at its emission position.
// Saving the same nickname again in the same run replaces the stored record.
func (db *DB) SaveMember(ctx context.Context, runID uuid.UUID, position int, rec *types.MemberRecord) error {
	telegramJSON, err := encodeTelegram(rec)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO member_records (run_id, nickname, position, fullname, telegram)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, nickname) DO UPDATE SET position = $3, fullname = $4, telegram = $5, created_at = NOW()`,
		runID, rec.Nickname, position, rec.FullName, telegramJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save member %s: %w", rec.Nickname, err)
	}
	return nil
}

// ListMembers returns a run's member records in emission order.
func (db *DB) ListMembers(ctx context.Context, runID uuid.UUID) ([]types.MemberRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT nickname, fullname, telegram
		 FROM member_records WHERE run_id = $1
		 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []types.MemberRecord{}
	for rows.Next() {
		var nickname, fullname string
		var telegramJSON []byte
		if err := rows.Scan(&nickname, &fullname, &telegramJSON); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		rec, err := decodeMember(nickname, fullname, telegramJSON)
		if err != nil {
			return nil, err
		}
		members = append(members, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

func encodeTelegram(rec *types.MemberRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("member record is nil")
	}
	data, err := json.Marshal(rec.Telegram)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal handles for %s: %w", rec.Nickname, err)
	}
	return data, nil
}

func decodeMember(nickname, fullname string, telegramJSON []byte) (*types.MemberRecord, error) {
	rec := &types.MemberRecord{FullName: fullname, Nickname: nickname}
	if err := json.Unmarshal(telegramJSON, &rec.Telegram); err != nil {
		return nil, fmt.Errorf("failed to unmarshal handles for %s: %w", nickname, err)
	}
	if rec.Telegram.Channels == nil {
		rec.Telegram.Channels = []types.Channel{}
	}
	if rec.Telegram.Chats == nil {
		rec.Telegram.Chats = []string{}
	}
	if rec.Telegram.Personal == nil {
		rec.Telegram.Personal = []string{}
	}
	return rec, nil
}
