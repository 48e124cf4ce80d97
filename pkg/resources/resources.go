// Package resources guards the process-wide handle to the persistent store.
// Every agent and both entry points must obtain the same handle; this is the
// mechanism that keeps the console and the HTTP surface on one authoritative
// data store, one identifier scheme, and one credential scheme.
package resources

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/database"
)

// Config identifies the underlying store. Two Initialize calls conflict when
// their configs differ in any field.
type Config struct {
	DSN            string
	MaxConnections int32
}

// Handle is the process-wide resource handle. It is published exactly once;
// after publication all reads are lock-free.
type Handle struct {
	DB  *database.DB
	cfg Config
}

// OpenFunc opens the underlying store. Injected so callers control dialing;
// pass nil for the default PostgreSQL pool.
type OpenFunc func(ctx context.Context, cfg Config) (*database.DB, error)

var (
	initMu sync.Mutex
	handle atomic.Pointer[Handle]
)

func defaultOpen(ctx context.Context, cfg Config) (*database.DB, error) {
	return database.NewConnection(ctx, &database.Config{
		URL:            cfg.DSN,
		MaxConnections: cfg.MaxConnections,
	})
}

// Initialize creates the store handle exactly once. A second call with the
// same config returns the existing handle; a call with a conflicting config
// fails with ErrAlreadyInitialized. Safe under concurrent first use.
func Initialize(ctx context.Context, cfg Config, open OpenFunc) (*Handle, error) {
	if h := handle.Load(); h != nil {
		return checkExisting(h, cfg)
	}

	initMu.Lock()
	defer initMu.Unlock()

	// Re-check under the guard: another goroutine may have won the race.
	if h := handle.Load(); h != nil {
		return checkExisting(h, cfg)
	}

	if open == nil {
		open = defaultOpen
	}
	db, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	h := &Handle{DB: db, cfg: cfg}
	handle.Store(h)
	return h, nil
}

func checkExisting(h *Handle, cfg Config) (*Handle, error) {
	if h.cfg != cfg {
		return nil, apperrors.ErrAlreadyInitialized
	}
	return h, nil
}

// Instance returns the published handle, or ErrNotInitialized before
// Initialize has completed.
func Instance() (*Handle, error) {
	if h := handle.Load(); h != nil {
		return h, nil
	}
	return nil, apperrors.ErrNotInitialized
}

// reset drops the published handle. Test use only.
func reset() {
	initMu.Lock()
	defer initMu.Unlock()
	handle.Store(nil)
}
