package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"progresskit/core"
	"progresskit/engine"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr         string        `json:"addr" env:"PROGRESSKIT_REDIS_ADDR"`
	Password     string        `json:"password" env:"PROGRESSKIT_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"PROGRESSKIT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"PROGRESSKIT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"PROGRESSKIT_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"PROGRESSKIT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"PROGRESSKIT_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"PROGRESSKIT_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.Store on Redis.
// Data layout:
//   - progress:{user}          -> JSON ProgressionRecord
//   - progress:{user}:history  -> list of JSON LevelHistoryEntry, oldest first
//   - progress:board           -> ZSET, member = user, score = composite rank
//
// Updates go through WATCH/MULTI, so a concurrent writer forces a retry
// rather than a lost update.
type Store struct {
	client *redis.Client
}

const (
	boardKey    = "progress:board"
	maxTxRetry  = 8
	scoreStride = 1e12
)

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client (useful for testing).
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error { return s.client.Close() }

func recordKey(user core.UserID) string  { return fmt.Sprintf("progress:%s", user) }
func historyKey(user core.UserID) string { return fmt.Sprintf("progress:%s:history", user) }

// boardScore folds (level, totalXP) into one ZSET score. Levels stay exact up
// to float64's 2^53 integer bound as long as totals stay below the stride.
func boardScore(rec core.ProgressionRecord) float64 {
	return float64(rec.Level)*scoreStride + float64(rec.TotalXP)
}

func (s *Store) checkOpen() error {
	if s.client == nil {
		return core.ErrNotInitialized
	}
	return nil
}

func (s *Store) readRecord(ctx context.Context, tx redis.Cmdable, user core.UserID) (core.ProgressionRecord, bool, error) {
	b, err := tx.Get(ctx, recordKey(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.ProgressionRecord{}, false, nil
	}
	if err != nil {
		return core.ProgressionRecord{}, false, err
	}
	var rec core.ProgressionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return core.ProgressionRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) GetOrCreate(ctx context.Context, user core.UserID) (core.ProgressionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, err
	}
	rec, err := s.Update(ctx, user, func(*core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		return nil, nil
	})
	if err != nil {
		return core.ProgressionRecord{}, err
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, user core.UserID) (core.ProgressionRecord, bool, error) {
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, false, err
	}
	rec, ok, err := s.readRecord(ctx, s.client, user)
	if err != nil {
		return core.ProgressionRecord{}, false, core.WrapData("redis get record", err)
	}
	return rec, ok, nil
}

func (s *Store) Update(ctx context.Context, user core.UserID, fn engine.Mutator) (core.ProgressionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return core.ProgressionRecord{}, err
	}
	var out core.ProgressionRecord
	txn := func(tx *redis.Tx) error {
		rec, ok, err := s.readRecord(ctx, tx, user)
		if err != nil {
			return err
		}
		if !ok {
			rec = core.NewProgressionRecord(user)
		}
		history, err := fn(&rec)
		if err != nil {
			return &mutatorError{err: err}
		}
		body, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, recordKey(user), body, 0)
			for _, h := range history {
				hb, err := json.Marshal(h)
				if err != nil {
					return err
				}
				pipe.RPush(ctx, historyKey(user), hb)
			}
			pipe.ZAdd(ctx, boardKey, redis.Z{Score: boardScore(rec), Member: string(user)})
			return nil
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	}

	for i := 0; i < maxTxRetry; i++ {
		err := s.client.Watch(ctx, txn, recordKey(user))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			// mutator errors (business no-ops) pass through untagged
			var me *mutatorError
			if errors.As(err, &me) {
				return core.ProgressionRecord{}, me.err
			}
			return core.ProgressionRecord{}, core.WrapData("redis update", err)
		}
		return out, nil
	}
	return core.ProgressionRecord{}, core.WrapData("redis update", fmt.Errorf("transaction contention after %d retries", maxTxRetry))
}

// mutatorError separates business aborts from storage failures.
type mutatorError struct{ err error }

func (m *mutatorError) Error() string { return m.err.Error() }
func (m *mutatorError) Unwrap() error { return m.err }

func (s *Store) LatestHistory(ctx context.Context, user core.UserID) (core.LevelHistoryEntry, bool, error) {
	if err := s.checkOpen(); err != nil {
		return core.LevelHistoryEntry{}, false, err
	}
	b, err := s.client.LIndex(ctx, historyKey(user), -1).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.LevelHistoryEntry{}, false, nil
	}
	if err != nil {
		return core.LevelHistoryEntry{}, false, core.WrapData("redis latest history", err)
	}
	var entry core.LevelHistoryEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return core.LevelHistoryEntry{}, false, core.WrapData("redis latest history", err)
	}
	return entry, true, nil
}

func (s *Store) MarkRewardsClaimed(ctx context.Context, user core.UserID, level int) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	claimed := false
	txn := func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, historyKey(user), 0, -1).Result()
		if err != nil {
			return err
		}
		for i := len(raw) - 1; i >= 0; i-- {
			var entry core.LevelHistoryEntry
			if err := json.Unmarshal([]byte(raw[i]), &entry); err != nil {
				return err
			}
			if entry.Level != level {
				continue
			}
			if entry.RewardsClaimed {
				return nil
			}
			entry.RewardsClaimed = true
			body, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LSet(ctx, historyKey(user), int64(i), body)
				return nil
			})
			if err == nil {
				claimed = true
			}
			return err
		}
		return nil
	}
	for i := 0; i < maxTxRetry; i++ {
		err := s.client.Watch(ctx, txn, historyKey(user))
		if errors.Is(err, redis.TxFailedErr) {
			claimed = false
			continue
		}
		if err != nil {
			return false, core.WrapData("redis claim rewards", err)
		}
		return claimed, nil
	}
	return false, core.WrapData("redis claim rewards", fmt.Errorf("transaction contention after %d retries", maxTxRetry))
}

func (s *Store) TopRecords(ctx context.Context, limit int) ([]core.ProgressionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	users, err := s.client.ZRevRange(ctx, boardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, core.WrapData("redis top records", err)
	}
	out := make([]core.ProgressionRecord, 0, len(users))
	for _, u := range users {
		rec, ok, err := s.Get(ctx, core.UserID(u))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Rank(ctx context.Context, user core.UserID) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	score, err := s.client.ZScore(ctx, boardKey, string(user)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, core.WrapData("redis rank", err)
	}
	min := "(" + strconv.FormatFloat(score, 'f', -1, 64)
	ahead, err := s.client.ZCount(ctx, boardKey, min, "+inf").Result()
	if err != nil {
		return 0, core.WrapData("redis rank", err)
	}
	return int(ahead) + 1, nil
}

var _ engine.Store = (*Store)(nil)
