package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

func TestRecordInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "source_yields")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := techwatch.YieldRecord{
		RunID:      "run-1",
		Source:     "Korben Blog",
		RangeStart: now.AddDate(0, 0, -7),
		RangeEnd:   now,
		Posts:      3,
		RecordedAt: now,
	}

	mock.ExpectExec("INSERT INTO source_yields").
		WithArgs(rec.RunID, rec.Source, rec.RangeStart, rec.RangeEnd, rec.Posts, rec.RecordedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Record(context.Background(), []techwatch.YieldRecord{rec}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRejectsIncompleteRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	err = store.Record(context.Background(), []techwatch.YieldRecord{{Source: "no run id"}})
	assert.Error(t, err)
}

func TestRecentYieldsReadsNewestFirst(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "source_yields")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"run_id", "source", "range_start", "range_end", "posts", "recorded_at"}).
		AddRow("run-2", "Korben Blog", now.AddDate(0, 0, -7), now, 5, now).
		AddRow("run-1", "Korben Blog", now.AddDate(0, 0, -14), now.AddDate(0, 0, -7), 2, now.AddDate(0, 0, -7))

	mock.ExpectQuery("SELECT run_id, source, range_start, range_end, posts, recorded_at").
		WithArgs("Korben Blog", 5).
		WillReturnRows(rows)

	recs, err := store.RecentYields(context.Background(), "Korben Blog", 5)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "run-2", recs[0].RunID)
	assert.Equal(t, 5, recs[0].Posts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad;drop table")
	assert.Error(t, err)
}
