package db_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/polycalc/internal/db"
	"github.com/udisondev/polycalc/internal/scenario"
	"github.com/udisondev/polycalc/internal/testutil"
)

func TestScenarioRepository(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := db.NewScenarioRepository(pool)
	ctx := testutil.ContextWithTimeout(t, time.Minute)

	require.NoError(t, repo.Ping(ctx))

	example := scenario.Example()

	code, err := repo.Save(ctx, example)
	require.NoError(t, err)
	want, err := scenario.Code(example)
	require.NoError(t, err)
	assert.Equal(t, want, code)

	t.Run("save is idempotent", func(t *testing.T) {
		again, err := repo.Save(ctx, example)
		require.NoError(t, err)
		assert.Equal(t, code, again)
	})

	t.Run("get returns the stored scenario", func(t *testing.T) {
		got, err := repo.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, example, *got)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := repo.Get(ctx, "zzzzzzzzzzzz")
		assert.ErrorIs(t, err, db.ErrScenarioNotFound)
	})

	t.Run("list recent", func(t *testing.T) {
		other := scenario.Example()
		other.VersionID = "ocean"
		otherCode, err := repo.Save(ctx, other)
		require.NoError(t, err)

		list, err := repo.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)

		codes := []string{list[0].Code, list[1].Code}
		assert.ElementsMatch(t, []string{code, otherCode}, codes)

		for _, info := range list {
			if info.Code == code {
				assert.Equal(t, "aquarion-rework", info.VersionID)
				assert.GreaterOrEqual(t, info.Views, int32(1))
			}
		}

		limited, err := repo.ListRecent(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}
