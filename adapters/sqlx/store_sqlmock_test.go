package sqlx_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "progresskit/adapters/sqlx"
	"progresskit/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres), mock
}

var recordColumns = []string{
	"user_id", "level", "xp", "total_xp", "xp_to_next", "prestige", "title", "created_at", "updated_at",
}

var historyColumns = []string{
	"id", "user_id", "level", "xp_gained", "achieved_at", "rewards_claimed",
}

func recordRow(user core.UserID, level int, xp, total int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(recordColumns).
		AddRow(user, level, xp, total, core.RequiredXP(level+1), 0, core.TitleFor(level, 0), now, now)
}

func TestSQLMock_GetOrCreate_Insert(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(user).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs(user, 1, int64(0), int64(0), core.RequiredXP(2), 0, "Novice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(user).
		WillReturnRows(recordRow(user, 1, 0, 0))
	mock.ExpectExec(`UPDATE progression_records`).
		WithArgs(1, int64(0), int64(0), core.RequiredXP(2), 0, "Novice", sqlmock.AnyArg(), user).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.GetOrCreate(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 1, rec.Level)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetOrCreate_LosesInsertRace(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	user := core.UserID("u1")

	// another connection committed the row between our empty select and the
	// insert; DO NOTHING swallows the conflict and the re-select sees the
	// winner's record
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(user).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs(user, 1, int64(0), int64(0), core.RequiredXP(2), 0, "Novice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(user).
		WillReturnRows(recordRow(user, 2, 18, 300))
	mock.ExpectExec(`UPDATE progression_records`).
		WithArgs(2, int64(18), int64(300), core.RequiredXP(3), 0, core.TitleFor(2, 0), sqlmock.AnyArg(), user).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.GetOrCreate(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 2, rec.Level)
	require.Equal(t, int64(300), rec.TotalXP)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Update_Existing(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(user).
		WillReturnRows(recordRow(user, 1, 0, 0))
	mock.ExpectExec(`UPDATE progression_records`).
		WithArgs(2, int64(0), int64(300), core.RequiredXP(3), 0, "Novice", sqlmock.AnyArg(), user).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO level_history`).
		WithArgs(sqlmock.AnyArg(), user, 2, int64(300), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec, err := store.Update(ctx, user, func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		r.Level = 2
		r.TotalXP = 300
		r.XPToNext = core.RequiredXP(3)
		r.UpdatedAt = time.Now().UTC()
		return []core.LevelHistoryEntry{core.NewLevelHistoryEntry(user, 2, 300, r.UpdatedAt)}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, rec.Level)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Update_MutatorAbort(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(user).
		WillReturnRows(recordRow(user, 1, 0, 0))
	mock.ExpectRollback()

	boom := errors.New("not eligible")
	_, err := store.Update(ctx, user, func(r *core.ProgressionRecord) ([]core.LevelHistoryEntry, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, core.ErrDataOperation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Get(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1`).
		WithArgs(user).
		WillReturnRows(recordRow(user, 3, 50, 900))

	rec, ok, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, rec.Level)
	require.Equal(t, int64(900), rec.TotalXP)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Get_Missing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM progression_records`).
		WithArgs(core.UserID("ghost")).
		WillReturnError(sql.ErrNoRows)

	_, ok, err := store.Get(context.Background(), "ghost")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_LatestHistory(t *testing.T) {
	store, mock := newMockStore(t)
	user := core.UserID("u1")

	mock.ExpectQuery(`FROM level_history WHERE user_id = \$1 ORDER BY achieved_at DESC`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow("id-1", user, 2, int64(300), time.Now().UTC(), false))

	entry, ok, err := store.LatestHistory(context.Background(), user)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, entry.Level)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_MarkRewardsClaimed(t *testing.T) {
	store, mock := newMockStore(t)
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM level_history WHERE user_id = \$1 AND level = \$2 .+ FOR UPDATE`).
		WithArgs(user, 5).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow("id-5", user, 5, int64(1000), time.Now().UTC(), false))
	mock.ExpectExec(`UPDATE level_history SET rewards_claimed = TRUE`).
		WithArgs("id-5").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := store.MarkRewardsClaimed(context.Background(), user, 5)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_MarkRewardsClaimed_Already(t *testing.T) {
	store, mock := newMockStore(t)
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM level_history WHERE user_id = \$1 AND level = \$2 .+ FOR UPDATE`).
		WithArgs(user, 5).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow("id-5", user, 5, int64(1000), time.Now().UTC(), true))
	mock.ExpectRollback()

	claimed, err := store.MarkRewardsClaimed(context.Background(), user, 5)
	require.NoError(t, err)
	require.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_TopRecords(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows(recordColumns)
	now := time.Now().UTC()
	rows.AddRow("a", 3, int64(0), int64(900), core.RequiredXP(4), 0, "Novice", now, now)
	rows.AddRow("b", 2, int64(0), int64(300), core.RequiredXP(3), 0, "Novice", now, now)
	mock.ExpectQuery(`FROM progression_records ORDER BY level DESC, total_xp DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(rows)

	top, err := store.TopRecords(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, core.UserID("a"), top[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Rank(t *testing.T) {
	store, mock := newMockStore(t)
	user := core.UserID("u1")

	mock.ExpectQuery(`FROM progression_records WHERE user_id = \$1`).
		WithArgs(user).
		WillReturnRows(recordRow(user, 2, 0, 300))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM progression_records`).
		WithArgs(2, 2, int64(300)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rank, err := store.Rank(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, 2, rank)
	require.NoError(t, mock.ExpectationsWereMet())
}
