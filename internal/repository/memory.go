package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"papertrader/types"
	"sync"
)

// Memory keeps the last saved state JSON-encoded, so a loaded state never
// aliases the caller's slices.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, state types.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

func (m *Memory) Load(_ context.Context) (*types.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	var state types.State
	if err := json.Unmarshal(m.data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return &state, nil
}

func (m *Memory) Close() error { return nil }
