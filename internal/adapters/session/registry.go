// Package session keeps the live conversations of the HTTP surface in a
// bounded, expiring LRU keyed by session id.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/usecases"
)

// Factory builds a fresh conversation for a session id.
type Factory func(id string) *usecases.Conversation

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *usecases.Conversation]
	factory Factory
	logger  zerolog.Logger
}

// NewRegistry holds at most size sessions; a session idle for ttl is dropped.
// Every successful lookup restarts the idle clock.
func NewRegistry(size int, ttl time.Duration, factory Factory, logger zerolog.Logger) *Registry {
	if size <= 0 {
		size = 1024
	}
	r := &Registry{
		factory: factory,
		logger:  logger.With().Str("component", "sessions").Logger(),
	}
	r.cache = expirable.NewLRU[string, *usecases.Conversation](size, r.onEvict, ttl)
	return r
}

func (r *Registry) onEvict(id string, c *usecases.Conversation) {
	r.logger.Debug().Str("session", id).Int("turns", c.Len()).Msg("session evicted")
}

// Create starts a new session with a random id.
func (r *Registry) Create() *usecases.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	c := r.factory(id)
	r.cache.Add(id, c)
	return c
}

// Get returns the session for id or entities.ErrSessionNotFound.
func (r *Registry) Get(id string) (*usecases.Conversation, error) {
	c, ok := r.touch(id)
	if !ok {
		return nil, entities.ErrSessionNotFound
	}
	return c, nil
}

// touch returns the live session for id and re-adds it so its expiry is
// measured from now.
func (r *Registry) touch(id string) (*usecases.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	r.cache.Add(id, c)
	return c, true
}

// GetOrCreate returns the session for id, creating a new one when id is
// empty or unknown. created reports whether a new session was made.
func (r *Registry) GetOrCreate(id string) (c *usecases.Conversation, created bool) {
	if id != "" {
		if c, ok := r.touch(id); ok {
			return c, false
		}
	}
	return r.Create(), true
}

// Remove ends a session.
func (r *Registry) Remove(id string) bool {
	return r.cache.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}
