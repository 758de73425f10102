// Package store provides DocumentStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/rotation-engine/rotation"
)

// DefaultMaxBatchOps matches the common document-store cap of 500 writes
// per atomic batch.
const DefaultMaxBatchOps = 500

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]rotation.Fields
	maxBatchOps int

	// Now is the server clock used for ServerTimestamp.
	Now func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithLimit(DefaultMaxBatchOps)
}

// NewMemoryWithLimit creates a store accepting at most limit ops per batch.
func NewMemoryWithLimit(limit int) *Memory {
	return &Memory{
		collections: make(map[string]map[string]rotation.Fields),
		maxBatchOps: limit,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) MaxBatchOps() int {
	return m.maxBatchOps
}

// QueryAll returns copies of the matching documents.
func (m *Memory) QueryAll(ctx context.Context, q rotation.Query) ([]rotation.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]rotation.Document, 0, len(m.collections[q.Collection]))
	for id, fields := range m.collections[q.Collection] {
		if q.Filter != nil && !q.Filter.Match(fields) {
			continue
		}
		docs = append(docs, rotation.Document{ID: id, Fields: fields.Clone()})
	}

	sort.Slice(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			a, b := docs[i].Fields.Int(q.OrderBy), docs[j].Fields.Int(q.OrderBy)
			if a != b {
				if q.Descending {
					return a > b
				}
				return a < b
			}
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// BatchWrite applies ops atomically: every op is validated before any is applied.
func (m *Memory) BatchWrite(ctx context.Context, ops []rotation.WriteOp) error {
	if len(ops) > m.maxBatchOps {
		return fmt.Errorf("%w: %d > %d", rotation.ErrBatchTooLarge, len(ops), m.maxBatchOps)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all ops first (atomic check)
	for _, op := range ops {
		switch op.Kind {
		case rotation.WriteUpdate:
			if _, ok := m.collections[op.Collection][op.DocumentID]; !ok {
				return fmt.Errorf("%w: %s/%s", rotation.ErrDocumentNotFound, op.Collection, op.DocumentID)
			}
		case rotation.WriteSet:
		default:
			return fmt.Errorf("unknown write kind %q", op.Kind)
		}
	}

	// Apply all (atomic write)
	now := m.Now()
	for _, op := range ops {
		fields := resolveTimestamps(op.Fields, now)
		switch op.Kind {
		case rotation.WriteUpdate:
			doc := m.collections[op.Collection][op.DocumentID]
			for k, v := range fields {
				if v == nil {
					delete(doc, k)
					continue
				}
				doc[k] = v
			}
		case rotation.WriteSet:
			m.collectionLocked(op.Collection)[op.DocumentID] = fields
		}
	}
	return nil
}

// Append stores a new document under a random id.
func (m *Memory) Append(ctx context.Context, collection string, fields rotation.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.collectionLocked(collection)[id] = resolveTimestamps(fields, m.Now())
	return id, nil
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Get returns a copy of one document.
func (m *Memory) Get(collection, id string) (rotation.Fields, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.collections[collection][id]
	if !ok {
		return nil, false
	}
	return fields.Clone(), true
}

func (m *Memory) collectionLocked(name string) map[string]rotation.Fields {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]rotation.Fields)
		m.collections[name] = c
	}
	return c
}

func resolveTimestamps(fields rotation.Fields, now time.Time) rotation.Fields {
	out := fields.Clone()
	for k, v := range out {
		if rotation.IsServerTimestamp(v) {
			out[k] = now
		}
	}
	return out
}
