// Package store owns the per-folder mail state: one MailContext per folder
// or saved search, with windowed pagination, staleness tracking, mutation
// coordination and an LRU cap on resident contexts. All state lives behind
// one mutex and is only ever replaced wholesale; every public method hands
// out deep-copied snapshots, so no caller holds a reference into the
// internals.
package store

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/source"
)

// Clock returns the current time; injected so tests control staleness.
type Clock func() time.Time

// Default engine tuning, overridable via Config.
const (
	DefaultPageSize      = 50
	DefaultStaleAfter    = 5 * time.Minute
	DefaultMaxResident   = 16
	DefaultBulkBatchSize = 25
	maxPageSize          = 500
)

// Config carries the optional knobs for a Store.
type Config struct {
	// Logger receives engine events; defaults to a stderr text handler.
	Logger *slog.Logger

	// Clock defaults to time.Now.
	Clock Clock

	// PageSize is the number of messages requested per page, clamped to
	// 1..500.
	PageSize int

	// StaleAfter is the age after which a context must be refetched.
	StaleAfter time.Duration

	// MaxResident caps how many contexts stay loaded; older ones are
	// evicted to the unloaded state and refetched on return.
	MaxResident int

	// BulkBatchSize bounds how many messages a bulk mutation processes
	// between cancellation checks.
	BulkBatchSize int
}

// Store is the single owner of all mail contexts.
type Store struct {
	src    source.MailSource
	logger *slog.Logger
	clock  Clock

	pageSize    int
	staleAfter  time.Duration
	maxResident int
	bulkBatch   int

	mu      sync.Mutex
	entries map[model.Folder]*entry
	current model.Folder
	seq     uint64
	genSeq  uint64
	intents map[string]*intent
}

// New builds a Store over the given mail source.
func New(src source.MailSource, cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	maxResident := cfg.MaxResident
	if maxResident <= 0 {
		maxResident = DefaultMaxResident
	}
	bulkBatch := cfg.BulkBatchSize
	if bulkBatch <= 0 {
		bulkBatch = DefaultBulkBatchSize
	}

	return &Store{
		src:         src,
		logger:      logger,
		clock:       clock,
		pageSize:    pageSize,
		staleAfter:  staleAfter,
		maxResident: maxResident,
		bulkBatch:   bulkBatch,
		entries:     make(map[model.Folder]*entry),
		intents:     make(map[string]*intent),
	}
}

// Context returns the snapshot for a folder, or a default-empty context if
// none is resident. It never creates state: reads have no side effects.
func (s *Store) Context(folder model.Folder) MailContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[folder]; ok {
		return e.snapshot()
	}
	return emptyContext(folder)
}

// CurrentFolder returns the folder most recently selected via SetFolder.
func (s *Store) CurrentFolder() model.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Backend identifies which mail backend serves this store.
func (s *Store) Backend() source.Backend {
	return s.src.Backend()
}

// SetFolder marks a folder as the active one. The active folder is exempt
// from LRU eviction. It returns the folder's current snapshot; callers
// decide whether to refresh based on staleness.
func (s *Store) SetFolder(folder model.Folder) MailContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = folder
	e := s.ensureLocked(folder)
	return e.snapshot()
}

// IsStale reports whether the folder's context should be refetched. An
// unloaded context is always stale.
func (s *Store) IsStale(folder model.Folder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[folder]
	if !ok {
		return true
	}
	return e.ctx.StaleAt(s.clock(), s.staleAfter)
}

// ClearError clears the surfaced error string on a folder's context.
func (s *Store) ClearError(folder model.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[folder]
	if !ok {
		return
	}
	next := e.ctx
	next.LastError = ""
	e.ctx = next
}

// ResidentFolders returns the folders currently held in memory, for
// diagnostics and tests.
func (s *Store) ResidentFolders() []model.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Folder, 0, len(s.entries))
	for f := range s.entries {
		out = append(out, f)
	}
	return out
}

// ensureLocked returns the entry for a folder, creating a default one if
// absent and evicting the least recently used entry when over the cap.
// Callers hold s.mu.
func (s *Store) ensureLocked(folder model.Folder) *entry {
	e, ok := s.entries[folder]
	if !ok {
		e = &entry{ctx: emptyContext(folder)}
		s.entries[folder] = e
		s.evictLocked()
	}
	s.seq++
	e.seq = s.seq
	return e
}

// evictLocked drops least recently used entries until the resident count
// is within the cap. The active folder and busy entries are skipped; an
// evicted folder comes back as a fresh entry on its next visit, so any
// fetch still in flight for it finds its generation gone and discards.
func (s *Store) evictLocked() {
	for len(s.entries) > s.maxResident {
		var victim model.Folder
		var victimSeq uint64
		found := false
		for f, e := range s.entries {
			if f == s.current || e.state != stateIdle {
				continue
			}
			if !found || e.seq < victimSeq {
				victim, victimSeq, found = f, e.seq, true
			}
		}
		if !found {
			return
		}
		delete(s.entries, victim)
		s.dropIntentsLocked(victim)
		s.logger.Debug("evicted mail context", "folder", victim)
	}
}

// invalidateOthersLocked marks every resident context except the acting
// one stale, forcing a lazy refetch on next visit. This is how a mutation
// in one folder becomes visible in the others. Callers hold s.mu.
func (s *Store) invalidateOthersLocked(acting model.Folder) {
	for f, e := range s.entries {
		if f == acting {
			continue
		}
		next := e.ctx
		next.LastUpdated = time.Time{}
		e.ctx = next
	}
}
