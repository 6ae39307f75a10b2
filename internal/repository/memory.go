package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/formbricks/collections/internal/models"
)

// MemoryCollections keeps collections and image bytes in process memory.
// Collections are listed in creation order.
type MemoryCollections struct {
	mu          sync.RWMutex
	collections map[string][]models.ClusterRecord
	images      map[string][]byte
}

// NewMemoryCollections creates an empty store.
func NewMemoryCollections() *MemoryCollections {
	return &MemoryCollections{
		collections: make(map[string][]models.ClusterRecord),
		images:      make(map[string][]byte),
	}
}

// PutImage stores data and returns its path.
func (m *MemoryCollections) PutImage(_ context.Context, ownerID, clusterID string, data []byte, filename string) (string, error) {
	if ownerID == "" {
		return "", ErrInvalidOwner
	}

	p := ImagePath(ownerID, clusterID, filename)

	m.mu.Lock()
	m.images[p] = slices.Clone(data)
	m.mu.Unlock()

	return p, nil
}

// Image returns the bytes stored at path.
func (m *MemoryCollections) Image(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.images[path]

	return data, ok
}

// PutClusterRecord inserts the record or replaces the owner's record with the same id.
func (m *MemoryCollections) PutClusterRecord(_ context.Context, ownerID string, record models.ClusterRecord) (string, error) {
	if ownerID == "" {
		return "", ErrInvalidOwner
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneRecord(record)
	list := m.collections[ownerID]

	for i := range list {
		if list[i].ID == record.ID {
			list[i] = stored

			return record.ID, nil
		}
	}

	m.collections[ownerID] = append(list, stored)

	return record.ID, nil
}

// ListClusters returns the owner's collections.
func (m *MemoryCollections) ListClusters(_ context.Context, ownerID string) ([]models.ClusterRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.collections[ownerID]
	out := make([]models.ClusterRecord, len(list))

	for i, r := range list {
		out[i] = cloneRecord(r)
	}

	return out, nil
}

// DeleteCluster removes a collection and the images stored under it.
func (m *MemoryCollections) DeleteCluster(_ context.Context, ownerID, clusterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.collections[ownerID]

	i := slices.IndexFunc(list, func(r models.ClusterRecord) bool { return r.ID == clusterID })
	if i < 0 {
		return ErrCollectionNotFound
	}

	for _, img := range list[i].Images {
		delete(m.images, img.URL)
	}

	m.collections[ownerID] = slices.Delete(list, i, i+1)

	return nil
}

func cloneRecord(r models.ClusterRecord) models.ClusterRecord {
	r.Images = slices.Clone(r.Images)
	r.Palette = slices.Clone(r.Palette)
	r.Tags = slices.Clone(r.Tags)
	r.Moods = slices.Clone(r.Moods)
	r.Centroid = slices.Clone(r.Centroid)

	return r
}
