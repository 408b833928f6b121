// Package couplestore keeps the local view of each couple: a durable cache
// that answers immediately, refreshed from the database and merged with
// realtime pushes.
package couplestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"hearth-backend/internal/models"
	"hearth-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// ErrOffline is returned when the remote fetch failed and only the cached
// value (if any) is available
var ErrOffline = errors.New("couplestore: remote unavailable")

// Remote fetches the authoritative couple row
type Remote interface {
	GetByUserID(ctx context.Context, userID string) (*models.Couple, error)
}

// Refresh is the outcome of a background fetch started by Load
type Refresh struct {
	Couple *models.Couple
	Err    error
}

type entry struct {
	couple *models.Couple
	// pending counts optimistic patches applied since the last server record
	pending uint64
}

// Store merges cached, fetched and pushed couple records.
// Server versions only move forward: a record older than the cached one is dropped.
type Store struct {
	cache  Cache
	remote Remote

	mu      sync.Mutex
	entries map[string]*entry
	users   map[string]string

	offline atomic.Bool
}

// NewStore creates a store over a durable cache and the remote repository
func NewStore(cache Cache, remote Remote) *Store {
	return &Store{
		cache:   cache,
		remote:  remote,
		entries: make(map[string]*entry),
		users:   make(map[string]string),
	}
}

// Load returns the cached couple for the user without waiting on the network,
// and a channel that yields the refreshed record once the fetch completes.
// A fetch that finishes after ctx is done does not touch the cache.
func (s *Store) Load(ctx context.Context, userID string) (*models.Couple, <-chan Refresh) {
	cached, _ := s.Cached(ctx, userID)

	ch := make(chan Refresh, 1)
	go func() {
		defer close(ch)
		c, err := s.Refresh(ctx, userID)
		ch <- Refresh{Couple: c, Err: err}
	}()
	return cached, ch
}

// Refresh fetches the user's couple and replaces the cached record with it.
// On network failure the cached value is returned together with ErrOffline.
func (s *Store) Refresh(ctx context.Context, userID string) (*models.Couple, error) {
	fetched, err := s.remote.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.offline.Store(false)
			return nil, err
		}
		s.offline.Store(true)
		log.Warn().Err(err).Str("user_id", userID).Msg("Couple fetch failed, serving cache")
		cached, _ := s.Cached(ctx, userID)
		return cached, fmt.Errorf("%w: %v", ErrOffline, err)
	}
	s.offline.Store(false)

	if ctx.Err() != nil {
		return fetched, ctx.Err()
	}
	s.merge(ctx, fetched, true)
	current, _ := s.Cached(ctx, userID)
	if current == nil {
		current = fetched
	}
	return current, nil
}

// Cached returns the last known couple for the user from memory or the durable cache
func (s *Store) Cached(ctx context.Context, userID string) (*models.Couple, bool) {
	s.mu.Lock()
	if id, ok := s.users[userID]; ok {
		if e, ok := s.entries[id]; ok {
			c := e.couple.Clone()
			s.mu.Unlock()
			return c, true
		}
	}
	s.mu.Unlock()

	c, err := s.cache.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to read couple cache")
		}
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[c.ID]; !ok {
		s.index(&entry{couple: c})
	}
	return s.entries[c.ID].couple.Clone(), true
}

// CachedByID returns a couple already held in memory
func (s *Store) CachedByID(coupleID string) (*models.Couple, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[coupleID]
	if !ok {
		return nil, false
	}
	return e.couple.Clone(), true
}

// ApplyLocal optimistically applies cmd to the cached couple and persists it
// before the server acknowledges. It returns nil when the couple is not cached
// or when cmd is conditional and the cached couple no longer allows it.
func (s *Store) ApplyLocal(ctx context.Context, coupleID string, cmd models.Command) *models.Couple {
	out := s.patch(coupleID, cmd)
	if out == nil {
		return nil
	}
	log.Debug().Str("couple_id", coupleID).Str("command", cmd.Name()).Msg("Applied optimistic patch")
	s.persist(ctx, out)
	return out
}

func (s *Store) patch(coupleID string, cmd models.Command) *models.Couple {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[coupleID]
	if !ok {
		return nil
	}
	if cond, ok := cmd.(models.Conditional); ok && !cond.Allowed(e.couple) {
		log.Debug().Str("couple_id", coupleID).Str("command", cmd.Name()).Msg("Skipped optimistic patch")
		return nil
	}
	patched := e.couple.Clone()
	cmd.Apply(patched)
	e.couple = patched
	e.pending++
	return patched.Clone()
}

// Reconcile replaces the cached record with c, an authoritative read, even
// when its version equals the cached one. Outstanding patches are dropped.
func (s *Store) Reconcile(ctx context.Context, c *models.Couple) bool {
	return s.merge(ctx, c, true)
}

// ApplyRemote merges a pushed server record. It reports whether the cache changed.
func (s *Store) ApplyRemote(ctx context.Context, c *models.Couple) bool {
	return s.merge(ctx, c, false)
}

// Offline reports whether the last remote fetch failed
func (s *Store) Offline() bool {
	return s.offline.Load()
}

// merge replaces the cached record wholesale when c is newer. An equal
// version wins only from an authoritative read: a pushed record at the cached
// version predates any optimistic patch, whose ack carries the next version.
func (s *Store) merge(ctx context.Context, c *models.Couple, refresh bool) bool {
	if c == nil {
		return false
	}
	s.mu.Lock()
	e, ok := s.entries[c.ID]
	if ok {
		newer := c.Version > e.couple.Version
		same := c.Version == e.couple.Version && refresh
		if !newer && !same {
			s.mu.Unlock()
			log.Debug().
				Str("couple_id", c.ID).
				Int64("cached_version", e.couple.Version).
				Int64("pushed_version", c.Version).
				Msg("Dropped stale couple record")
			return false
		}
	}
	s.index(&entry{couple: c.Clone()})
	out := c.Clone()
	s.mu.Unlock()

	s.persist(ctx, out)
	return true
}

// index stores e and maps every member to it. Callers hold s.mu.
func (s *Store) index(e *entry) {
	s.entries[e.couple.ID] = e
	for _, member := range e.couple.Members() {
		s.users[member] = e.couple.ID
	}
}

func (s *Store) persist(ctx context.Context, c *models.Couple) {
	if err := s.cache.Put(context.WithoutCancel(ctx), c); err != nil {
		log.Error().Err(err).Str("couple_id", c.ID).Msg("Failed to persist couple cache")
	}
}
