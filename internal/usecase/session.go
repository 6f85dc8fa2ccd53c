package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mrkjhm/belisita-catalog/internal/assets"
	"github.com/mrkjhm/belisita-catalog/internal/domain"
	"github.com/mrkjhm/belisita-catalog/internal/staging"
)

// EditSession is one product editing session: the staged (not yet
// uploaded) files plus the product's persisted images. Capacity checks
// read both collections through the same session.
type EditSession struct {
	ID        uuid.UUID
	ProductID string
	Staging   *staging.Set
	Persisted *assets.List
}

type SessionRegistry struct {
	mu       sync.Mutex
	api      domain.CatalogAPI
	previews domain.PreviewStore
	sessions map[uuid.UUID]*EditSession
}

func NewSessionRegistry(api domain.CatalogAPI, previews domain.PreviewStore) *SessionRegistry {
	return &SessionRegistry{
		api:      api,
		previews: previews,
		sessions: make(map[uuid.UUID]*EditSession),
	}
}

// Open starts an editing session. With a product id the persisted image
// list is seeded from the backend; with an empty id the session is for a
// new, not yet saved product.
func (r *SessionRegistry) Open(ctx context.Context, productID string) (*EditSession, error) {
	var initial []domain.ImageAsset
	if productID != "" {
		p, err := r.api.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		initial = p.Images
	}

	sess := &EditSession{ID: uuid.New(), ProductID: productID}
	sess.Persisted = assets.NewList(productID, r.api, initial)
	sess.Staging = staging.NewSet(r.previews, sess.Persisted.Len)

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess, nil
}

func (r *SessionRegistry) Get(id uuid.UUID) (*EditSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

// Abandon ends a session, revoking every staged preview.
func (r *SessionRegistry) Abandon(id uuid.UUID) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		sess.Staging.Clear()
	}
}
