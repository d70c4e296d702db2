package session_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/zhouzirui/mcp-weather/backend/internal/service/session"
)

var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCreateThenTouchReturnsQuery(t *testing.T) {
	store := session.NewStore(session.Config{})

	created := store.Create("What is the weather like in Tokyo?")
	assert.Regexp(t, idPattern, created.ID)

	got, err := store.Touch(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "What is the weather like in Tokyo?", got.Query)
}

func TestCreateGeneratesDistinctIDs(t *testing.T) {
	store := session.NewStore(session.Config{})
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		id := store.Create("q").ID
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.Equal(t, 500, store.Len())
}

func TestSweepExpired(t *testing.T) {
	clock := newFakeClock()
	store := session.NewStore(session.Config{Now: clock.Now})

	created := store.Create("hello")

	assert.Equal(t, 0, store.SweepExpired(clock.Now(), session.DefaultTTL))
	assert.Equal(t, 1, store.Len())

	later := clock.Now().Add(session.DefaultTTL + time.Second)
	assert.Equal(t, 1, store.SweepExpired(later, session.DefaultTTL))

	_, err := store.Touch(created.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	clock := newFakeClock()
	store := session.NewStore(session.Config{Now: clock.Now})
	created := store.Create("forecast for Paris")

	for i := 0; i < 5; i++ {
		clock.Advance(200 * time.Second)
		got, err := store.Touch(created.ID)
		require.NoError(t, err)
		assert.Equal(t, "forecast for Paris", got.Query)
		assert.Equal(t, clock.Now(), got.LastSeen)
		assert.Equal(t, 0, store.SweepExpired(clock.Now(), session.DefaultTTL))
	}

	// 1000s after creation, still alive: every touch landed inside the window.
	stored, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastSeen.After(stored.CreatedAt))
}

func TestTouchUnknownID(t *testing.T) {
	store := session.NewStore(session.Config{})
	_, err := store.Touch("missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestTouchReturnsCopy(t *testing.T) {
	store := session.NewStore(session.Config{})
	created := store.Create("original")

	got, err := store.Touch(created.ID)
	require.NoError(t, err)
	got.Query = "mutated"

	again, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Query)
}

func TestCreateAtCapacityEvictsLeastRecentlySeen(t *testing.T) {
	clock := newFakeClock()
	store := session.NewStore(session.Config{MaxEntries: 2, Now: clock.Now})

	first := store.Create("first")
	clock.Advance(time.Second)
	second := store.Create("second")
	clock.Advance(time.Second)

	_, err := store.Touch(first.ID)
	require.NoError(t, err)
	clock.Advance(time.Second)

	third := store.Create("third")
	assert.Equal(t, 2, store.Len())

	_, err = store.Get(second.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = store.Get(first.ID)
	assert.NoError(t, err)
	_, err = store.Get(third.ID)
	assert.NoError(t, err)
}

func TestCreateAtCapacityPrefersExpired(t *testing.T) {
	clock := newFakeClock()
	store := session.NewStore(session.Config{MaxEntries: 2, TTL: time.Minute, Now: clock.Now})

	stale := store.Create("stale")
	clock.Advance(50 * time.Second)
	fresh := store.Create("fresh")
	clock.Advance(20 * time.Second)

	store.Create("newest")

	_, err := store.Get(stale.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestRunSweepsPeriodically(t *testing.T) {
	clock := newFakeClock()
	store := session.NewStore(session.Config{TTL: time.Minute, Now: clock.Now})
	store.Create("short lived")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.Run(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestConcurrentAccess(t *testing.T) {
	store := session.NewStore(session.Config{})
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				created := store.Create("q")
				if _, err := store.Touch(created.ID); err != nil {
					t.Errorf("touch: %v", err)
					return
				}
				store.SweepExpired(time.Now(), session.DefaultTTL)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16*50, store.Len())
}

func TestTouchDoesNotReviveExpiredSession(t *testing.T) {
	clock := newFakeClock()
	store := session.NewStore(session.Config{TTL: time.Minute, Now: clock.Now})
	created := store.Create("q")

	clock.Advance(61 * time.Second)

	_, err := store.Get(created.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = store.Touch(created.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 0, store.Len())
}
