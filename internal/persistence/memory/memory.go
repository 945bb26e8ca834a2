// Package memory provides an in-memory Repository for tests and local
// development without Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"example.com/deeds/internal/domain"
)

type scopeKey struct {
	tenantID string
	userID   string
}

type scope struct {
	deeds   map[string]domain.Deed
	entries map[string]domain.Entry
	prefs   *domain.Preferences
}

// Repository stores deeds, entries and preferences in memory.
type Repository struct {
	mu     sync.RWMutex
	scopes map[scopeKey]*scope
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{scopes: make(map[scopeKey]*scope)}
}

func (r *Repository) scopeFor(tenantID, userID string) *scope {
	key := scopeKey{tenantID: tenantID, userID: userID}
	s, ok := r.scopes[key]
	if !ok {
		s = &scope{deeds: make(map[string]domain.Deed), entries: make(map[string]domain.Entry)}
		r.scopes[key] = s
	}
	return s
}

// CreateDeed implements domain.Repository.
func (r *Repository) CreateDeed(_ context.Context, deed domain.Deed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(deed.ID) == "" {
		deed.ID = uuid.NewString()
	}
	r.scopeFor(deed.TenantID, deed.UserID).deeds[deed.ID] = deed
	return nil
}

// UpdateDeed implements domain.Repository.
func (r *Repository) UpdateDeed(_ context.Context, deed domain.Deed) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.scopeFor(deed.TenantID, deed.UserID)
	if _, ok := s.deeds[deed.ID]; !ok {
		return false, nil
	}
	s.deeds[deed.ID] = deed
	return true, nil
}

// GetDeed implements domain.Repository.
func (r *Repository) GetDeed(_ context.Context, tenantID, userID, deedID string) (*domain.Deed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scopes[scopeKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return nil, nil
	}
	deed, ok := s.deeds[deedID]
	if !ok {
		return nil, nil
	}
	return &deed, nil
}

// ListDeeds implements domain.Repository, ordered by sort order then
// creation time.
func (r *Repository) ListDeeds(_ context.Context, tenantID, userID string, includeArchived bool) ([]domain.Deed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scopes[scopeKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Deed, 0, len(s.deeds))
	for _, deed := range s.deeds {
		if deed.Archived && !includeArchived {
			continue
		}
		out = append(out, deed)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteDeedEntries implements domain.Repository.
func (r *Repository) DeleteDeedEntries(_ context.Context, tenantID, userID, deedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scopes[scopeKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return nil
	}
	for id, entry := range s.entries {
		if entry.DeedID == deedID {
			delete(s.entries, id)
		}
	}
	return nil
}

// DeleteDeed implements domain.Repository.
func (r *Repository) DeleteDeed(_ context.Context, tenantID, userID, deedID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scopes[scopeKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return false, nil
	}
	if _, ok := s.deeds[deedID]; !ok {
		return false, nil
	}
	delete(s.deeds, deedID)
	return true, nil
}

// InsertEntry implements domain.Repository.
func (r *Repository) InsertEntry(_ context.Context, tenantID, userID string, entry domain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	r.scopeFor(tenantID, userID).entries[entry.ID] = entry
	return nil
}

// DeleteEntry implements domain.Repository.
func (r *Repository) DeleteEntry(_ context.Context, tenantID, userID, entryID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scopes[scopeKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return false, nil
	}
	if _, ok := s.entries[entryID]; !ok {
		return false, nil
	}
	delete(s.entries, entryID)
	return true, nil
}

// QueryEntries implements domain.Repository, ordered by timestamp ascending.
func (r *Repository) QueryEntries(_ context.Context, tenantID, userID string, q domain.EntryQuery) ([]domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryLocked(tenantID, userID, q), nil
}

func (r *Repository) queryLocked(tenantID, userID string, q domain.EntryQuery) []domain.Entry {
	s, ok := r.scopes[scopeKey{tenantID: tenantID, userID: userID}]
	if !ok {
		return nil
	}
	out := make([]domain.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if q.DeedID != "" && entry.DeedID != q.DeedID {
			continue
		}
		if q.From != nil && entry.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && !entry.Timestamp.Before(*q.To) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListEntriesPage implements domain.Repository with keyset pagination.
func (r *Repository) ListEntriesPage(_ context.Context, tenantID, userID string, q domain.EntryQuery, cursor *domain.Cursor, limit int) ([]domain.Entry, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.queryLocked(tenantID, userID, q)
	if cursor != nil {
		filtered := make([]domain.Entry, 0, len(entries))
		for _, entry := range entries {
			if entry.Timestamp.After(cursor.Timestamp) ||
				(entry.Timestamp.Equal(cursor.Timestamp) && entry.ID > cursor.ID) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	var next *domain.Cursor
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	if limit > 0 && len(entries) == limit {
		last := entries[len(entries)-1]
		next = &domain.Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	return entries, next, nil
}

// GetPreferences implements domain.Repository.
func (r *Repository) GetPreferences(_ context.Context, tenantID, userID string) (*domain.Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scopes[scopeKey{tenantID: tenantID, userID: userID}]
	if !ok || s.prefs == nil {
		return nil, nil
	}
	prefs := *s.prefs
	return &prefs, nil
}

// UpsertPreferences implements domain.Repository.
func (r *Repository) UpsertPreferences(_ context.Context, tenantID, userID string, prefs domain.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scopeFor(tenantID, userID).prefs = &prefs
	return nil
}
