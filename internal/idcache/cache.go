// Package idcache keeps display ids (FRM-00001, EMP-00042) for farmer and
// employee records so views do not refetch them on every render.
package idcache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

var ErrNotCached = errors.New("display id not cached")

// Loader resolves a display id on a cache miss.
type Loader func(ctx context.Context, entity domain.EntityType, id uuid.UUID) (string, error)

type key struct {
	entity domain.EntityType
	id     uuid.UUID
}

// Cache is safe for concurrent use. A nil Loader makes it a plain map that
// only returns what was Put.
type Cache struct {
	mu      sync.RWMutex
	entries map[key]string
	load    Loader
}

func New(load Loader) *Cache {
	return &Cache{entries: make(map[key]string), load: load}
}

func (c *Cache) Get(ctx context.Context, entity domain.EntityType, id uuid.UUID) (string, error) {
	k := key{entity: entity, id: id}
	c.mu.RLock()
	v, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}
	if c.load == nil {
		return "", ErrNotCached
	}

	v, err := c.load(ctx, entity, id)
	if err != nil {
		return "", err
	}
	c.Put(entity, id, v)
	return v, nil
}

func (c *Cache) Put(entity domain.EntityType, id uuid.UUID, displayID string) {
	c.mu.Lock()
	c.entries[key{entity: entity, id: id}] = displayID
	c.mu.Unlock()
}

func (c *Cache) Invalidate(entity domain.EntityType, id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, key{entity: entity, id: id})
	c.mu.Unlock()
}

// InvalidateEntity drops every id of one entity type, e.g. after an import
// renumbered records.
func (c *Cache) InvalidateEntity(entity domain.EntityType) {
	c.mu.Lock()
	for k := range c.entries {
		if k.entity == entity {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[key]string)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type entry struct {
	Entity    domain.EntityType `json:"entity"`
	ID        uuid.UUID         `json:"id"`
	DisplayID string            `json:"displayId"`
}

// Save writes the cache as JSON so a later process can Restore it.
func (c *Cache) Save(w io.Writer) error {
	c.mu.RLock()
	out := make([]entry, 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, entry{Entity: k.entity, ID: k.id, DisplayID: v})
	}
	c.mu.RUnlock()
	return json.NewEncoder(w).Encode(out)
}

func (c *Cache) Restore(r io.Reader) error {
	var in []entry
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range in {
		if e.Entity.Valid() && e.DisplayID != "" {
			c.entries[key{entity: e.Entity, id: e.ID}] = e.DisplayID
		}
	}
	return nil
}
