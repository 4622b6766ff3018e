package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// database drivers selected via Config.Driver
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"progresskit/core"
	"progresskit/engine"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL storage configuration.
type Config struct {
	Driver       Driver        `json:"driver" env:"PROGRESSKIT_SQL_DRIVER"`
	DSN          string        `json:"dsn" env:"PROGRESSKIT_SQL_DSN"`
	MaxOpenConns int           `json:"max_open_conns" env:"PROGRESSKIT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns int           `json:"max_idle_conns" env:"PROGRESSKIT_SQL_MAX_IDLE_CONNS"`
	ConnLifetime time.Duration `json:"conn_lifetime" env:"PROGRESSKIT_SQL_CONN_LIFETIME"`
}

// DefaultConfig returns defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:       driver,
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		ConnLifetime: 30 * time.Minute,
	}
}

// Store implements engine.Store on a SQL database via sqlx. Per-user
// serialization comes from SELECT ... FOR UPDATE row locks inside the
// update transaction.
//
// Schema: see Migrate.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and verifies connectivity.
func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sql storage requires a DSN")
	}
	db, err := sqlx.Connect(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)
	return &Store{db: db, driver: cfg.Driver}, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the progression tables when absent.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS progression_records (
			user_id    VARCHAR(128) PRIMARY KEY,
			level      INT NOT NULL,
			xp         BIGINT NOT NULL,
			total_xp   BIGINT NOT NULL,
			xp_to_next BIGINT NOT NULL,
			prestige   INT NOT NULL,
			title      VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS level_history (
			id              VARCHAR(36) PRIMARY KEY,
			user_id         VARCHAR(128) NOT NULL,
			level           INT NOT NULL,
			xp_gained       BIGINT NOT NULL,
			achieved_at     TIMESTAMP NOT NULL,
			rewards_claimed BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_level_history_user ON level_history (user_id, achieved_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return core.WrapData("sql migrate", err)
		}
	}
	return nil
}

const (
	selectRecordQuery = `SELECT user_id, level, xp, total_xp, xp_to_next, prestige, title, created_at, updated_at
		FROM progression_records WHERE user_id = ?`
	insertRecordQuery = `INSERT INTO progression_records
		(user_id, level, xp, total_xp, xp_to_next, prestige, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`
	insertRecordQueryMySQL = `INSERT IGNORE INTO progression_records
		(user_id, level, xp, total_xp, xp_to_next, prestige, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	updateRecordQuery = `UPDATE progression_records
		SET level = ?, xp = ?, total_xp = ?, xp_to_next = ?, prestige = ?, title = ?, updated_at = ?
		WHERE user_id = ?`
	insertHistoryQuery = `INSERT INTO level_history
		(id, user_id, level, xp_gained, achieved_at, rewards_claimed)
		VALUES (?, ?, ?, ?, ?, ?)`
	latestHistoryQuery = `SELECT id, user_id, level, xp_gained, achieved_at, rewards_claimed
		FROM level_history WHERE user_id = ? ORDER BY achieved_at DESC, id DESC LIMIT 1`
	claimHistoryQuery = `SELECT id, user_id, level, xp_gained, achieved_at, rewards_claimed
		FROM level_history WHERE user_id = ? AND level = ? ORDER BY achieved_at DESC, id DESC LIMIT 1`
	markClaimedQuery = `UPDATE level_history SET rewards_claimed = TRUE WHERE id = ?`
	topRecordsQuery  = `SELECT user_id, level, xp, total_xp, xp_to_next, prestige, title, created_at, updated_at
		FROM progression_records ORDER BY level DESC, total_xp DESC LIMIT ?`
	rankQuery = `SELECT COUNT(*) FROM progression_records WHERE level > ? OR (level = ? AND total_xp > ?)`
)

func (s *Store) insertRecordStmt() string {
	if s.driver == DriverMySQL {
		return insertRecordQueryMySQL
	}
	return insertRecordQuery
}

func (s *Store) checkOpen() error {
	if s.db == nil {
		return core.ErrNotInitialized
	}
	return nil
}

func (s *Store) GetOrCreate(ctx context.Context, user core.UserID) (core.ProgressionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, err
	}
	return s.Update(ctx, user, func(*core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		return nil, nil
	})
}

func (s *Store) Get(ctx context.Context, user core.UserID) (core.ProgressionRecord, bool, error) {
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, false, err
	}
	var rec core.ProgressionRecord
	err := s.db.GetContext(ctx, &rec, s.db.Rebind(selectRecordQuery), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ProgressionRecord{}, false, nil
	}
	if err != nil {
		return core.ProgressionRecord{}, false, core.WrapData("sql get record", err)
	}
	return rec, true, nil
}

func (s *Store) Update(ctx context.Context, user core.UserID, fn engine.Mutator) (core.ProgressionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.ProgressionRecord{}, core.WrapData("sql begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rec core.ProgressionRecord
	err = tx.GetContext(ctx, &rec, tx.Rebind(selectRecordQuery+" FOR UPDATE"), user)
	if errors.Is(err, sql.ErrNoRows) {
		// a missing row locks nothing, so two first-time callers can race
		// here; the conflict-tolerant insert lets the loser fall through to
		// re-select the winner's row
		fresh := core.NewProgressionRecord(user)
		if _, ierr := tx.ExecContext(ctx, tx.Rebind(s.insertRecordStmt()),
			fresh.UserID, fresh.Level, fresh.XP, fresh.TotalXP, fresh.XPToNext, fresh.Prestige, fresh.Title, fresh.CreatedAt, fresh.UpdatedAt); ierr != nil {
			return core.ProgressionRecord{}, core.WrapData("sql insert record", ierr)
		}
		err = tx.GetContext(ctx, &rec, tx.Rebind(selectRecordQuery+" FOR UPDATE"), user)
	}
	if err != nil {
		return core.ProgressionRecord{}, core.WrapData("sql select record", err)
	}

	history, err := fn(&rec)
	if err != nil {
		return core.ProgressionRecord{}, err
	}

	if _, err = tx.ExecContext(ctx, tx.Rebind(updateRecordQuery),
		rec.Level, rec.XP, rec.TotalXP, rec.XPToNext, rec.Prestige, rec.Title, rec.UpdatedAt, rec.UserID); err != nil {
		return core.ProgressionRecord{}, core.WrapData("sql write record", err)
	}

	for _, h := range history {
		if _, err := tx.ExecContext(ctx, tx.Rebind(insertHistoryQuery),
			h.ID, h.UserID, h.Level, h.XPGained, h.AchievedAt, h.RewardsClaimed); err != nil {
			return core.ProgressionRecord{}, core.WrapData("sql write history", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.ProgressionRecord{}, core.WrapData("sql commit", err)
	}
	return rec, nil
}

func (s *Store) LatestHistory(ctx context.Context, user core.UserID) (core.LevelHistoryEntry, bool, error) {
	if err := s.checkOpen(); err != nil {
		return core.LevelHistoryEntry{}, false, err
	}
	var entry core.LevelHistoryEntry
	err := s.db.GetContext(ctx, &entry, s.db.Rebind(latestHistoryQuery), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LevelHistoryEntry{}, false, nil
	}
	if err != nil {
		return core.LevelHistoryEntry{}, false, core.WrapData("sql latest history", err)
	}
	return entry, true, nil
}

func (s *Store) MarkRewardsClaimed(ctx context.Context, user core.UserID, level int) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, core.WrapData("sql begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var entry core.LevelHistoryEntry
	err = tx.GetContext(ctx, &entry, tx.Rebind(claimHistoryQuery+" FOR UPDATE"), user, level)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, core.WrapData("sql select history", err)
	}
	if entry.RewardsClaimed {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(markClaimedQuery), entry.ID); err != nil {
		return false, core.WrapData("sql mark claimed", err)
	}
	if err := tx.Commit(); err != nil {
		return false, core.WrapData("sql commit", err)
	}
	return true, nil
}

func (s *Store) TopRecords(ctx context.Context, limit int) ([]core.ProgressionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	var recs []core.ProgressionRecord
	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(topRecordsQuery), limit); err != nil {
		return nil, core.WrapData("sql top records", err)
	}
	return recs, nil
}

func (s *Store) Rank(ctx context.Context, user core.UserID) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	rec, ok, err := s.Get(ctx, user)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var ahead int
	if err := s.db.GetContext(ctx, &ahead, s.db.Rebind(rankQuery), rec.Level, rec.Level, rec.TotalXP); err != nil {
		return 0, core.WrapData("sql rank", err)
	}
	return ahead + 1, nil
}

var _ engine.Store = (*Store)(nil)
