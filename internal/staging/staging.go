package staging

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
)

// Item is one staged file together with its revocable preview handle.
type Item struct {
	ID      uuid.UUID
	File    domain.FilePayload
	Preview string
}

// Set holds the locally picked files awaiting upload for one product
// editing session. The image ceiling is enforced jointly with the
// product's already persisted images through the persisted count func.
type Set struct {
	mu        sync.Mutex
	previews  domain.PreviewStore
	persisted func() int
	items     []Item
}

func NewSet(previews domain.PreviewStore, persisted func() int) *Set {
	if persisted == nil {
		persisted = func() int { return 0 }
	}
	return &Set{previews: previews, persisted: persisted}
}

// Stage appends files in selection order, creating one preview handle per
// file. If the joint count would exceed domain.MaxImagesPerProduct the
// call mutates nothing and returns ErrCapacityExceeded.
func (s *Set) Stage(files ...domain.FilePayload) error {
	if len(files) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persisted()+len(s.items)+len(files) > domain.MaxImagesPerProduct {
		return domain.ErrCapacityExceeded
	}

	staged := make([]Item, 0, len(files))
	for _, f := range files {
		handle, err := s.previews.Create(f.Name, f.Data)
		if err != nil {
			for _, it := range staged {
				s.revoke(it.Preview)
			}
			return fmt.Errorf("stage %s: %w", f.Name, err)
		}
		staged = append(staged, Item{ID: uuid.New(), File: f, Preview: handle})
	}
	s.items = append(s.items, staged...)
	return nil
}

// Unstage removes the file at index, revoking its preview immediately.
// Subsequent items shift down by one.
func (s *Set) Unstage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return domain.ErrNotFound
	}
	s.revoke(s.items[index].Preview)
	s.items = append(s.items[:index], s.items[index+1:]...)
	return nil
}

// Clear revokes every remaining preview handle and empties the set. Must
// run after a fully successful upload batch and on session abandonment.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		s.revoke(it.Preview)
	}
	s.items = nil
}

// Retain keeps only the items at the given indices (relative to current
// order), revoking and dropping the rest. Used after a partial upload
// batch: failed files stay staged for retry, succeeded ones leave.
func (s *Set) Retain(indices ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		keep[i] = struct{}{}
	}
	kept := s.items[:0]
	for i, it := range s.items {
		if _, ok := keep[i]; ok {
			kept = append(kept, it)
			continue
		}
		s.revoke(it.Preview)
	}
	s.items = kept
}

func (s *Set) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Set) Files() []domain.FilePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FilePayload, len(s.items))
	for i, it := range s.items {
		out[i] = it.File
	}
	return out
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Set) revoke(handle string) {
	if err := s.previews.Revoke(handle); err != nil {
		log.Warn().Err(err).Str("preview", handle).Msg("preview revoke failed")
	}
}
