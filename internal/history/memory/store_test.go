package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		err := s.Record(ctx, []techwatch.YieldRecord{{
			RunID:      "run",
			Source:     "A",
			Posts:      i,
			RecordedAt: now.AddDate(0, 0, i),
		}})
		require.NoError(t, err)
	}

	t.Run("NewestFirst", func(t *testing.T) {
		recs, err := s.RecentYields(ctx, "A", 10)
		require.NoError(t, err)
		require.Len(t, recs, 4)
		assert.Equal(t, 3, recs[0].Posts)
		assert.Equal(t, 0, recs[3].Posts)
	})

	t.Run("LimitApplied", func(t *testing.T) {
		recs, err := s.RecentYields(ctx, "A", 2)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("UnknownSourceEmpty", func(t *testing.T) {
		recs, err := s.RecentYields(ctx, "B", 10)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}
