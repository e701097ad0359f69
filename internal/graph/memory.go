package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	remotes  map[uuid.UUID]*RemoteNode
	files    map[uuid.UUID]*FileNode
	byRemote map[uuid.UUID]map[uuid.UUID]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		remotes:  make(map[uuid.UUID]*RemoteNode),
		files:    make(map[uuid.UUID]*FileNode),
		byRemote: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (m *MemoryStore) PutRemote(_ context.Context, node *RemoteNode) error {
	if node == nil || node.ID == uuid.Nil {
		return fmt.Errorf("graph: remote node without ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *node
	m.remotes[node.ID] = &cp
	if _, ok := m.byRemote[node.ID]; !ok {
		m.byRemote[node.ID] = make(map[uuid.UUID]struct{})
	}
	return nil
}

func (m *MemoryStore) PutFile(_ context.Context, node *FileNode) error {
	if node == nil || node.ID == uuid.Nil {
		return fmt.Errorf("graph: file node without ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.remotes[node.RemoteID]; !ok {
		return fmt.Errorf("graph: file %s references unknown remote %s: %w", node.Path, node.RemoteID, ErrNotFound)
	}
	cp := *node
	m.files[node.ID] = &cp
	m.byRemote[node.RemoteID][node.ID] = struct{}{}
	return nil
}

func (m *MemoryStore) ReplaceFiles(_ context.Context, remoteID uuid.UUID, files []*FileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.remotes[remoteID]; !ok {
		return fmt.Errorf("graph: unknown remote %s: %w", remoteID, ErrNotFound)
	}
	// Validate the whole batch before touching state so a bad batch
	// leaves the previous file set intact.
	for _, f := range files {
		if f == nil || f.ID == uuid.Nil {
			return fmt.Errorf("graph: file node without ID")
		}
		if f.RemoteID != remoteID {
			return fmt.Errorf("graph: file %s belongs to %s, not %s", f.Path, f.RemoteID, remoteID)
		}
	}
	for id := range m.byRemote[remoteID] {
		delete(m.files, id)
	}
	members := make(map[uuid.UUID]struct{}, len(files))
	for _, f := range files {
		cp := *f
		m.files[f.ID] = &cp
		members[f.ID] = struct{}{}
	}
	m.byRemote[remoteID] = members
	return nil
}

func (m *MemoryStore) Remote(_ context.Context, id uuid.UUID) (*RemoteNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.remotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *node
	return &cp, nil
}

func (m *MemoryStore) File(_ context.Context, id uuid.UUID) (*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *node
	return &cp, nil
}

func (m *MemoryStore) FilesByRemote(_ context.Context, remoteID uuid.UUID) ([]*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids, ok := m.byRemote[remoteID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]*FileNode, 0, len(ids))
	for id := range ids {
		cp := *m.files[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) Remotes(_ context.Context) ([]*RemoteNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RemoteNode, 0, len(m.remotes))
	for _, node := range m.remotes {
		cp := *node
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// Len reports node counts, for status endpoints and tests.
func (m *MemoryStore) Len() (remotes, files int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.remotes), len(m.files)
}

func (m *MemoryStore) Close() error { return nil }
