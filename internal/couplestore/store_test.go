package couplestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hearth-backend/internal/models"
	"hearth-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu     sync.Mutex
	couple *models.Couple
	err    error
	gate   chan struct{}
}

func (f *fakeRemote) GetByUserID(ctx context.Context, userID string) (*models.Couple, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.couple == nil || f.couple.RoleOf(userID) == models.RoleNone {
		return nil, repository.ErrNotFound
	}
	return f.couple.Clone(), nil
}

func (f *fakeRemote) set(c *models.Couple, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.couple, f.err = c, err
}

func couple(version int64, theme string) *models.Couple {
	b := "b"
	return &models.Couple{ID: "c1", Partner1ID: "a", Partner2ID: &b, RoomTheme: theme, Version: version}
}

func TestLoad_ReturnsCacheThenRefresh(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(ctx, couple(1, "cozy")))

	remote := &fakeRemote{gate: make(chan struct{})}
	remote.set(couple(3, "forest"), nil)
	store := NewStore(cache, remote)

	cached, refreshed := store.Load(ctx, "b")
	require.NotNil(t, cached)
	assert.Equal(t, "cozy", cached.RoomTheme)

	close(remote.gate)
	res := <-refreshed
	require.NoError(t, res.Err)
	assert.Equal(t, "forest", res.Couple.RoomTheme)

	persisted, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), persisted.Version)
}

func TestRefresh_NetworkFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	remote.set(couple(2, "beach"), nil)
	store := NewStore(NewMemoryCache(), remote)

	_, err := store.Refresh(ctx, "a")
	require.NoError(t, err)
	assert.False(t, store.Offline())

	remote.set(nil, errors.New("connection refused"))
	got, err := store.Refresh(ctx, "a")
	assert.ErrorIs(t, err, ErrOffline)
	require.NotNil(t, got)
	assert.Equal(t, "beach", got.RoomTheme)
	assert.True(t, store.Offline())

	cached, ok := store.Cached(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "beach", cached.RoomTheme)
}

func TestRefresh_NotFound(t *testing.T) {
	store := NewStore(NewMemoryCache(), &fakeRemote{})
	got, err := store.Refresh(context.Background(), "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, got)
	assert.False(t, store.Offline())
}

func TestApplyRemote_DropsStalePush(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryCache(), &fakeRemote{})

	assert.True(t, store.ApplyRemote(ctx, couple(5, "space")))
	assert.False(t, store.ApplyRemote(ctx, couple(4, "winter")))
	assert.False(t, store.ApplyRemote(ctx, couple(5, "winter")), "duplicate push without local patches")

	got, ok := store.CachedByID("c1")
	require.True(t, ok)
	assert.Equal(t, "space", got.RoomTheme)

	assert.True(t, store.ApplyRemote(ctx, couple(6, "winter")))
	got, _ = store.CachedByID("c1")
	assert.Equal(t, "winter", got.RoomTheme)
}

func TestApplyLocal_SurvivesStalePushAndPersists(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	store := NewStore(cache, &fakeRemote{})
	store.ApplyRemote(ctx, couple(5, "cozy"))

	patched := store.ApplyLocal(ctx, "c1", models.SetRoomTheme{Theme: "forest"})
	require.NotNil(t, patched)
	assert.Equal(t, "forest", patched.RoomTheme)

	// a late push carrying an older version must not clobber the optimistic write
	assert.False(t, store.ApplyRemote(ctx, couple(4, "beach")))
	got, _ := store.CachedByID("c1")
	assert.Equal(t, "forest", got.RoomTheme)

	// durable cache resumes from the optimistic state after a restart
	restarted := NewStore(cache, &fakeRemote{})
	resumed, ok := restarted.Cached(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "forest", resumed.RoomTheme)

	// a duplicate push at the pre-patch version predates the patch
	assert.False(t, store.ApplyRemote(ctx, couple(5, "cozy")))
	got, _ = store.CachedByID("c1")
	assert.Equal(t, "forest", got.RoomTheme)

	// the server ack carries the next version
	assert.True(t, store.ApplyRemote(ctx, couple(6, "forest")))
}

func TestReconcile_EqualVersionDropsPatch(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryCache(), &fakeRemote{})
	store.ApplyRemote(ctx, couple(5, "cozy"))
	store.ApplyLocal(ctx, "c1", models.SetRoomTheme{Theme: "forest"})

	assert.True(t, store.Reconcile(ctx, couple(5, "cozy")))
	got, _ := store.CachedByID("c1")
	assert.Equal(t, "cozy", got.RoomTheme)
}

func TestApplyLocal_SkipsDisallowedConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryCache(), &fakeRemote{})
	store.ApplyRemote(ctx, couple(5, "cozy"))

	// no proposals on record, so finalize is not allowed
	assert.Nil(t, store.ApplyLocal(ctx, "c1", models.Finalize{}))

	got, ok := store.CachedByID("c1")
	require.True(t, ok)
	assert.Nil(t, got.CreatureType)

	// the store stays usable afterwards
	assert.NotNil(t, store.ApplyLocal(ctx, "c1", models.SetRoomTheme{Theme: "beach"}))
}

func TestApplyLocal_UnknownCouple(t *testing.T) {
	store := NewStore(NewMemoryCache(), &fakeRemote{})
	assert.Nil(t, store.ApplyLocal(context.Background(), "missing", models.ResetNegotiation{}))
}

func TestLoad_CancelledContextDoesNotApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	remote := &fakeRemote{gate: make(chan struct{})}
	remote.set(couple(9, "space"), nil)
	store := NewStore(NewMemoryCache(), remote)

	_, refreshed := store.Load(ctx, "a")
	cancel()
	close(remote.gate)

	select {
	case res := <-refreshed:
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("refresh did not complete")
	}
	_, ok := store.CachedByID("c1")
	assert.False(t, ok)
}
