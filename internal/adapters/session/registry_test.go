package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/usecases"
)

func newTestRegistry(size int, ttl time.Duration) *Registry {
	return NewRegistry(size, ttl, func(id string) *usecases.Conversation {
		return usecases.NewConversation(id, nil)
	}, zerolog.Nop())
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry(10, time.Hour)

	c := r.Create()
	_, err := uuid.Parse(c.ID())
	require.NoError(t, err)

	got, err := r.Get(c.ID())
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = r.Get("unknown")
	assert.ErrorIs(t, err, entities.ErrSessionNotFound)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := newTestRegistry(10, time.Hour)

	first, created := r.GetOrCreate("")
	assert.True(t, created)

	again, created := r.GetOrCreate(first.ID())
	assert.False(t, created)
	assert.Same(t, first, again)

	other, created := r.GetOrCreate("stale-id")
	assert.True(t, created)
	assert.NotEqual(t, first.ID(), other.ID())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_EvictsOldest(t *testing.T) {
	r := newTestRegistry(2, time.Hour)

	a := r.Create()
	r.Create()
	r.Create()

	assert.Equal(t, 2, r.Len())
	_, err := r.Get(a.ID())
	assert.ErrorIs(t, err, entities.ErrSessionNotFound)
}

func TestRegistry_Remove(t *testing.T) {
	r := newTestRegistry(10, time.Hour)
	c := r.Create()

	assert.True(t, r.Remove(c.ID()))
	assert.False(t, r.Remove(c.ID()))
	assert.Zero(t, r.Len())
}

func TestRegistry_ActiveSessionOutlivesTTL(t *testing.T) {
	r := newTestRegistry(10, 300*time.Millisecond)
	c := r.Create()

	for i := 0; i < 10; i++ {
		time.Sleep(100 * time.Millisecond)
		got, err := r.Get(c.ID())
		require.NoError(t, err, "session lost after %d lookups", i)
		assert.Same(t, c, got)
	}

	again, created := r.GetOrCreate(c.ID())
	assert.False(t, created)
	assert.Same(t, c, again)
}

func TestRegistry_IdleSessionExpires(t *testing.T) {
	r := newTestRegistry(10, 150*time.Millisecond)
	c := r.Create()

	time.Sleep(400 * time.Millisecond)

	_, err := r.Get(c.ID())
	assert.ErrorIs(t, err, entities.ErrSessionNotFound)

	fresh, created := r.GetOrCreate(c.ID())
	assert.True(t, created)
	assert.NotEqual(t, c.ID(), fresh.ID())
}
