package repository

import (
	"context"
	"papertrader/internal/engine"
	"papertrader/types"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSaveTimeout = 5 * time.Second

// StateSource is anything that can produce a full state snapshot, normally
// the engine itself.
type StateSource interface {
	Snapshot() types.State
}

// Saver is an engine listener that writes the engine state to a Store after
// every change. Rejected orders change nothing and are not saved. Save
// errors are logged; the in-memory engine stays authoritative.
type Saver struct {
	mu      sync.Mutex // held across Snapshot and Save
	store   Store
	source  StateSource
	logger  *zap.Logger
	timeout time.Duration
}

func NewSaver(store Store, source StateSource, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{store: store, source: source, logger: logger, timeout: defaultSaveTimeout}
}

func (s *Saver) OnEvent(ev engine.Event) {
	if ev.Kind == engine.EventOrder && (ev.Order == nil || !ev.Order.Success) {
		return
	}
	if err := s.Flush(); err != nil {
		s.logger.Error("failed to save state",
			zap.String("event", string(ev.Kind)),
			zap.String("account", ev.AccountID),
			zap.Error(err))
	}
}

// Flush saves the current snapshot immediately. Concurrent flushes are
// serialized, so a later flush never loses to an earlier, slower one.
func (s *Saver) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.store.Save(ctx, s.source.Snapshot())
}
