package collab

import (
	"context"
	"sync"

	"github.com/collabcore/realtime-platform/internal/model"
)

// MemorySnapshots is an in-memory SnapshotProvider (the real data layer
// sits behind this interface in production). Missing entities yield an
// empty snapshot, not an error.
type MemorySnapshots struct {
	mu        sync.RWMutex
	snapshots map[string]model.Snapshot
}

// NewMemorySnapshots creates an empty snapshot provider.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{
		snapshots: make(map[string]model.Snapshot),
	}
}

// Put stores the snapshot for an entity.
func (p *MemorySnapshots) Put(entityType model.EntityType, entityID string, snapshot model.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[model.RoomID(entityType, entityID)] = snapshot
}

// GetSnapshot returns the entity's current state.
func (p *MemorySnapshots) GetSnapshot(ctx context.Context, entityType model.EntityType, entityID string) (model.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap, ok := p.snapshots[model.RoomID(entityType, entityID)]
	if !ok {
		return model.Snapshot{}, nil
	}
	out := make(model.Snapshot, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out, nil
}
