package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hoshinonyaruko/tabletop/fog"
	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/scene"
	"github.com/hoshinonyaruko/tabletop/structs"
	"go.uber.org/zap"
)

// DefaultMaxRetries bounds the compare-and-swap retries of one mutation.
const DefaultMaxRetries = 5

// Options tunes a Manager. Zero values take the defaults.
type Options struct {
	MaxRetries  int
	GridSize    int
	MaxRolls    int
	RecentRolls int
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.GridSize <= 0 {
		o.GridSize = fog.DefaultSize
	}
	if o.MaxRolls <= 0 {
		o.MaxRolls = rolls.DefaultMaxEntries
	}
	if o.RecentRolls <= 0 {
		o.RecentRolls = rolls.DefaultRecentLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Manager is the per-process entry point to every session. Mutations of one
// session are serialized by a per-session mutex; reads never take it.
type Manager struct {
	store  Store
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from Manager.locks once nobody holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a manager over store.
func NewManager(store Store, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger,
		locks:  make(map[string]*sessionLock),
	}
}

// lock takes the session's mutex and returns its release.
func (m *Manager) lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

// initialDocument is what a session holds before its first write. The first
// scene id is derived from the session id, so reads of a session that was
// never written agree with each other and with the document the first write
// stores.
func (m *Manager) initialDocument(sessionID string) *structs.Document {
	return scene.NewSeededDocument(sessionID, m.opts.Now())
}

// load reads the session document. A session that was never written reads
// as its initial document, which is not stored.
func (m *Manager) load(ctx context.Context, sessionID string) (*structs.Document, error) {
	doc, err := m.store.LoadDocument(ctx, sessionID)
	if errors.Is(err, ErrNoDocument) {
		return m.initialDocument(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return doc, nil
}

// loadOrCreate is load for writers: the initial document is stored first.
func (m *Manager) loadOrCreate(ctx context.Context, sessionID string) (*structs.Document, error) {
	doc, err := m.store.LoadDocument(ctx, sessionID)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrNoDocument) {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	doc = m.initialDocument(sessionID)
	if err := m.store.CreateDocument(ctx, sessionID, doc); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// created concurrently by someone else
			return m.store.LoadDocument(ctx, sessionID)
		}
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}
	m.logger.Info("session created", zap.String("session", sessionID))
	return doc, nil
}

// Mutate runs fn against a private copy of the session's document and
// commits the result with the version bumped by one. If fn fails nothing is
// written. The returned document is the committed one.
func (m *Manager) Mutate(ctx context.Context, sessionID, op string, fn func(doc *structs.Document) error) (*structs.Document, error) {
	unlock := m.lock(sessionID)
	defer unlock()
	return m.commit(ctx, sessionID, op, fn)
}

// commit is Mutate without the session lock. Another process sharing the
// store can still race us, so a version conflict re-reads and re-applies.
func (m *Manager) commit(ctx context.Context, sessionID, op string, fn func(doc *structs.Document) error) (*structs.Document, error) {
	for attempt := 1; attempt <= m.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur, err := m.loadOrCreate(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		work := cur.Clone()
		scene.Active(work)
		if err := fn(work); err != nil {
			return nil, err
		}
		work.Version = cur.Version + 1
		work.LastUpdate = m.opts.Now().Unix()

		err = m.store.SaveDocument(ctx, sessionID, work, cur.Version)
		if errors.Is(err, ErrVersionConflict) {
			m.logger.Warn("session version conflict, retrying",
				zap.String("session", sessionID),
				zap.String("op", op),
				zap.Int64("read_version", cur.Version),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: save session %s: %w", op, sessionID, err)
		}

		m.logger.Debug("session mutated",
			zap.String("session", sessionID),
			zap.String("op", op),
			zap.Int64("version", work.Version),
		)
		return work, nil
	}
	return nil, fmt.Errorf("%s: giving up after %d attempts: %w", op, m.opts.MaxRetries, ErrVersionConflict)
}

// mutateActive is Mutate for operations on the active scene.
func (m *Manager) mutateActive(ctx context.Context, sessionID, op string, fn func(s *structs.Scene) error) (int64, error) {
	doc, err := m.Mutate(ctx, sessionID, op, func(doc *structs.Document) error {
		return fn(scene.Active(doc))
	})
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}
