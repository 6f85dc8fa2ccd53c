package assets

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
)

// Remover is the backend call that deletes one image of one product.
type Remover interface {
	DeleteProductImage(ctx context.Context, productID, publicID string) error
}

// List mirrors the backend's last-confirmed image set for one product.
// It never removes optimistically: a delete call that the backend does
// not confirm leaves the list exactly as it was, so a failed delete can
// never make an image flicker away and reappear.
type List struct {
	mu        sync.Mutex
	productID string
	api       Remover
	items     []domain.ImageAsset
}

func NewList(productID string, api Remover, initial []domain.ImageAsset) *List {
	items := make([]domain.ImageAsset, len(initial))
	copy(items, initial)
	return &List{productID: productID, api: api, items: items}
}

// Append adds assets to the end in the order given. Upload batches land
// in completion order, which is the display order from then on.
func (l *List) Append(assets ...domain.ImageAsset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, assets...)
}

// Remove asks the backend to delete the asset and drops it locally only
// once the backend confirms.
func (l *List) Remove(ctx context.Context, publicID string) error {
	l.mu.Lock()
	found := false
	for _, a := range l.items {
		if a.PublicID == publicID {
			found = true
			break
		}
	}
	l.mu.Unlock()
	if !found {
		return domain.ErrNotFound
	}

	if err := l.api.DeleteProductImage(ctx, l.productID, publicID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeletionFailed, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, a := range l.items {
		if a.PublicID == publicID {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	return nil
}

func (l *List) Assets() []domain.ImageAsset {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ImageAsset, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
