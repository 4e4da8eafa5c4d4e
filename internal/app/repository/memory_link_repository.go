package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sifan077/GateLink/internal/app/model"
)

// MemoryLinkRepository keeps links in process memory. It honours the same contract as the
// GORM repository and serialises every mutation behind a single mutex.
type MemoryLinkRepository struct {
	mu      sync.Mutex
	byToken map[string]*model.Link
	byID    map[string]*model.Link
	now     func() time.Time
}

// NewMemoryLinkRepository returns an empty in-memory LinkRepository.
func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{
		byToken: make(map[string]*model.Link),
		byID:    make(map[string]*model.Link),
		now:     time.Now,
	}
}

func (r *MemoryLinkRepository) Create(_ context.Context, link *model.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[link.Token]; ok {
		return ErrTokenCollision
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = r.now()
	}
	stored := *link
	r.byToken[link.Token] = &stored
	r.byID[link.ID] = &stored
	return nil
}

func (r *MemoryLinkRepository) GetByToken(_ context.Context, token string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byToken[token]
	if !ok {
		return nil, ErrLinkNotFound
	}
	snapshot := *link
	return &snapshot, nil
}

func (r *MemoryLinkRepository) GetByOwner(_ context.Context, ownerID, id string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byID[id]
	if !ok || link.OwnerID != ownerID {
		return nil, ErrLinkNotFound
	}
	snapshot := *link
	return &snapshot, nil
}

func (r *MemoryLinkRepository) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.Lock()
	var owned []model.Link
	for _, link := range r.byID {
		if link.OwnerID == ownerID {
			owned = append(owned, *link)
		}
	}
	r.mu.Unlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	if offset >= len(owned) {
		return []model.Link{}, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (r *MemoryLinkRepository) Disable(_ context.Context, ownerID, id string) (*model.Link, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byID[id]
	if !ok || link.OwnerID != ownerID {
		return nil, false, ErrLinkNotFound
	}
	changed := link.IsActive
	link.IsActive = false
	snapshot := *link
	return &snapshot, changed, nil
}

func (r *MemoryLinkRepository) ResolveAndIncrement(_ context.Context, token string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byToken[token]
	if !ok {
		return "", ErrLinkNotFound
	}
	if !consumable(link, now) {
		return "", ErrGateFailed
	}
	link.ClickCount++
	return link.TargetURL, nil
}

func (r *MemoryLinkRepository) EachToken(_ context.Context, fn func(token string)) error {
	r.mu.Lock()
	tokens := make([]string, 0, len(r.byToken))
	for token := range r.byToken {
		tokens = append(tokens, token)
	}
	r.mu.Unlock()

	for _, token := range tokens {
		fn(token)
	}
	return nil
}

// consumable mirrors the WHERE clause of the GORM conditional update.
func consumable(link *model.Link, now time.Time) bool {
	if !link.IsActive {
		return false
	}
	if link.ExpiresAt != nil && !now.Before(*link.ExpiresAt) {
		return false
	}
	if link.MaxClicks != nil && link.ClickCount >= *link.MaxClicks {
		return false
	}
	if link.RevealAt != nil && now.Before(*link.RevealAt) {
		return false
	}
	return true
}
