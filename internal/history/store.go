// Package history keeps the ordered log of past diagnoses and persists it as a single
// blob in a key-value store.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/agridoc/agridoc/internal/database"
	"github.com/agridoc/agridoc/internal/models"
	"go.uber.org/zap"
)

// DefaultKey is the storage slot the history lives in
const DefaultKey = "agri_history"

// dateLayout renders like en-IN {day: numeric, month: short}, e.g. "19 Oct"
const dateLayout = "2 Jan"

// PersistenceError means the updated history could not be written. The new item is still
// visible for this session but will be gone after a restart.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "failed to persist history: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// PersistedDataError describes a stored history blob that could not be decoded
type PersistedDataError struct {
	Key string
	Err error
}

func (e *PersistedDataError) Error() string {
	return fmt.Sprintf("malformed history under %q: %v", e.Key, e.Err)
}
func (e *PersistedDataError) Unwrap() error { return e.Err }

// Option configures a Store
type Option func(*Store)

// WithKey overrides the storage key
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLocation sets the time zone date strings are rendered in
func WithLocation(loc *time.Location) Option { return func(s *Store) { s.loc = loc } }

// WithMaxItems caps the history; the oldest items are evicted first. Zero means unbounded.
func WithMaxItems(n int) Option { return func(s *Store) { s.maxItems = n } }

// WithLogger attaches a logger
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.logger = l } }

// Store owns the history sequence, most recent first. All mutations hold mu for the whole
// read-modify-write, so concurrent Record calls never overwrite each other.
type Store struct {
	kv       database.KV
	key      string
	now      func() time.Time
	loc      *time.Location
	maxItems int
	logger   *zap.Logger

	mu     sync.Mutex
	loaded bool
	items  []models.HistoryItem
	lastID int64
}

func NewStore(kv database.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		now:    time.Now,
		loc:    time.Local,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "history"))
	return s
}

// Load reads the persisted history. Missing or malformed data yields an empty history;
// only a storage read failure is returned, and then the store stays unloaded so the next
// call retries.
func (s *Store) Load(ctx context.Context) ([]models.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, database.ErrNotFound):
		s.setItemsLocked(nil)
		return nil
	case err != nil:
		return fmt.Errorf("failed to read history: %w", err)
	}

	items, err := decode(raw)
	if err != nil {
		perr := &PersistedDataError{Key: s.key, Err: err}
		s.logger.Error("Discarding unreadable history", zap.Error(perr), zap.Int("bytes", len(raw)))
		s.backupCorrupt(ctx, raw)
		items = nil
	}
	s.setItemsLocked(items)
	s.logger.Info("History loaded", zap.Int("items", len(s.items)))
	return nil
}

// backupCorrupt keeps the undecodable blob next to the live key before it can be overwritten
func (s *Store) backupCorrupt(ctx context.Context, raw []byte) {
	backupKey := s.key + ".corrupt"
	if err := s.kv.Set(ctx, backupKey, raw); err != nil {
		s.logger.Warn("Failed to back up unreadable history", zap.String("key", backupKey), zap.Error(err))
	}
}

func (s *Store) setItemsLocked(items []models.HistoryItem) {
	// Older blobs may carry null treatment lists
	for i := range items {
		items[i].Diagnosis = *items[i].Diagnosis.Clone()
	}
	s.items = items
	s.loaded = true
	for _, it := range items {
		if n, err := strconv.ParseInt(it.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
}

func (s *Store) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.loadLocked(ctx)
}

// Record creates a history item for a successful diagnosis, prepends it and persists the
// whole history. A *PersistenceError is returned together with the item when the write fails.
func (s *Store) Record(ctx context.Context, imageData []byte, diagnosis models.DiagnosisResult) (models.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return models.HistoryItem{}, err
	}

	now := s.now()
	d := diagnosis.Clone()
	item := models.HistoryItem{
		ID:           s.nextIDLocked(now),
		Date:         now.In(s.loc).Format(dateLayout),
		Crop:         d.CropName(),
		ImagePreview: models.EncodeImage(imageData),
		Diagnosis:    *d,
	}

	updated := make([]models.HistoryItem, 0, len(s.items)+1)
	updated = append(updated, item)
	updated = append(updated, s.items...)
	if s.maxItems > 0 && len(updated) > s.maxItems {
		s.logger.Debug("Evicting oldest history items", zap.Int("evicted", len(updated)-s.maxItems))
		updated = updated[:s.maxItems]
	}
	s.items = updated

	if err := s.persistLocked(ctx); err != nil {
		return item, err
	}
	s.logger.Info("Scan recorded",
		zap.String("id", item.ID),
		zap.String("crop", item.Crop),
		zap.Int("items", len(s.items)))
	return item, nil
}

// nextIDLocked returns the current millisecond reading, bumped past the last issued id
func (s *Store) nextIDLocked(now time.Time) string {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// Persist rewrites the full current history to storage
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := encode(s.items)
	if err != nil {
		return &PersistenceError{Err: err}
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Error("Failed to persist history", zap.Error(err), zap.Int("items", len(s.items)))
		return &PersistenceError{Err: err}
	}
	return nil
}

// Clear removes every item and persists the empty history
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	s.items = nil
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.logger.Info("History cleared")
	return nil
}

// List is Items, but first retries a load that failed earlier
func (s *Store) List(ctx context.Context) ([]models.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// Items returns a copy of the history, most recent first
func (s *Store) Items() []models.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of recorded items
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) snapshotLocked() []models.HistoryItem {
	out := make([]models.HistoryItem, len(s.items))
	for i, it := range s.items {
		out[i] = it
		out[i].Diagnosis = *it.Diagnosis.Clone()
	}
	return out
}
