package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps sessions in memory, keyed by string, and forgets
// entries that have not been saved for ttl.
type SessionRepository[T any] struct {
	cache *cache.Cache
}

// NewSessionRepository creates a repository. A cleanupInterval of zero
// disables the background janitor; expired entries are then only hidden
// from Get.
func NewSessionRepository[T any](ttl, cleanupInterval time.Duration) *SessionRepository[T] {
	return &SessionRepository[T]{
		cache: cache.New(ttl, cleanupInterval),
	}
}

func (r *SessionRepository[T]) Save(key string, session T) {
	r.cache.Set(key, session, cache.DefaultExpiration)
}

func (r *SessionRepository[T]) Get(key string) (T, bool) {
	if x, found := r.cache.Get(key); found {
		if session, ok := x.(T); ok {
			return session, true
		}
	}
	var zero T
	return zero, false
}

func (r *SessionRepository[T]) Delete(key string) {
	r.cache.Delete(key)
}

func (r *SessionRepository[T]) Count() int {
	return r.cache.ItemCount()
}

func (r *SessionRepository[T]) Flush() {
	r.cache.Flush()
}
