package snapshot

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps snapshots in process. Writes older than the stored
// snapshot are ignored, matching RedisStore.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ts   map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}, ts: map[string]int64{}}
}

func (m *MemoryStore) Save(_ context.Context, agentID string, s Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.ts[agentID]; ok && cur > s.Timestamp {
		return nil
	}
	m.data[agentID] = raw
	m.ts[agentID] = s.Timestamp
	return nil
}

func (m *MemoryStore) Load(_ context.Context, agentID string) (*Snapshot, error) {
	m.mu.Lock()
	raw, ok := m.data[agentID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decode(raw)
}

func (m *MemoryStore) Clear(_ context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, agentID)
	delete(m.ts, agentID)
	return nil
}

// PutRaw stores bytes as-is.
func (m *MemoryStore) PutRaw(agentID string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[agentID] = raw
	delete(m.ts, agentID)
}

// Len reports how many agents have a stored snapshot.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
