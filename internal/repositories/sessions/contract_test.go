package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ana = models.Person{FirstName: "Ana", LastName: "Lee", IDNumber: "7", Affiliation: "Ops", UniqueID: "U1"}
	bob = models.Person{FirstName: "Bob", LastName: "Ray", IDNumber: "8", Affiliation: "Lab", UniqueID: "U2"}
)

// testRepositoryBehaviour exercises the behaviour every backend must share.
func testRepositoryBehaviour(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("find on empty store", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindActive(ctx, "U1")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("create then find", func(t *testing.T) {
		repo := newRepo(t)
		s := models.NewSession(ana, base)
		require.NoError(t, repo.Create(ctx, s))
		require.NotEmpty(t, s.ID)

		got, err := repo.FindActive(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, "Ana", got.FirstName)
		assert.Equal(t, "Lee", got.LastName)
		assert.Equal(t, "7", got.IDNumber)
		assert.Equal(t, "Ops", got.Affiliation)
		assert.True(t, got.IsActive)
		assert.True(t, got.LoggedInAt.Equal(base), "logged_in_at %v != %v", got.LoggedInAt, base)
		assert.Nil(t, got.LoggedOutAt)
	})

	t.Run("second create rejected", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, models.NewSession(ana, base)))

		err := repo.Create(ctx, models.NewSession(ana, base.Add(time.Minute)))
		require.ErrorIs(t, err, common.ErrAlreadyActive)

		active, err := repo.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("close then reopen", func(t *testing.T) {
		repo := newRepo(t)
		first := models.NewSession(ana, base)
		require.NoError(t, repo.Create(ctx, first))

		out := base.Add(time.Hour)
		closed, err := repo.CloseActive(ctx, "U1", out)
		require.NoError(t, err)
		assert.Equal(t, first.ID, closed.ID)
		assert.False(t, closed.IsActive)
		require.NotNil(t, closed.LoggedOutAt)
		assert.True(t, closed.LoggedOutAt.Equal(out))

		_, err = repo.FindActive(ctx, "U1")
		require.ErrorIs(t, err, common.ErrorNotFound)

		_, err = repo.CloseActive(ctx, "U1", out)
		require.ErrorIs(t, err, common.ErrorNotFound)

		second := models.NewSession(ana, out.Add(time.Minute))
		require.NoError(t, repo.Create(ctx, second))
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("close without session", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, models.NewSession(bob, base)))

		_, err := repo.CloseActive(ctx, "U1", base)
		require.ErrorIs(t, err, common.ErrorNotFound)

		_, err = repo.FindActive(ctx, "U2")
		require.NoError(t, err, "other sessions untouched")
	})

	t.Run("list active ordered by login", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, models.NewSession(bob, base.Add(time.Second))))
		require.NoError(t, repo.Create(ctx, models.NewSession(ana, base)))

		active, err := repo.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "U1", active[0].UniqueID)
		assert.Equal(t, "U2", active[1].UniqueID)
	})

	t.Run("concurrent create admits one", func(t *testing.T) {
		repo := newRepo(t)

		const n = 8
		var (
			wg      sync.WaitGroup
			ok      atomic.Int32
			already atomic.Int32
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Create(ctx, models.NewSession(ana, base))
				switch {
				case err == nil:
					ok.Add(1)
				case assert.ErrorIs(t, err, common.ErrAlreadyActive):
					already.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, ok.Load())
		assert.EqualValues(t, n-1, already.Load())
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Ping(ctx))
	})
}
