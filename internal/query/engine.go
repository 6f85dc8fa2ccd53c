package query

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
)

// FilterAll disables the client-side category filter.
const FilterAll = "all"

// Fetcher is the slice of the backend the engine reads from.
type Fetcher interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, term string) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// Engine produces the product list the operator sees: a server-side text
// query merged with a purely local category filter. Responses are applied
// in request-issued order; a response for a superseded query is dropped,
// never shown.
type Engine struct {
	api Fetcher

	mu       sync.Mutex
	seq      uint64
	query    string
	filter   string
	products []domain.Product
}

func NewEngine(api Fetcher) *Engine {
	return &Engine{api: api, filter: FilterAll}
}

// SetQuery issues exactly one request for the new query text: the full
// list when text is empty, a name/code search otherwise. If a newer query
// is issued while this one is in flight, this result is discarded.
func (e *Engine) SetQuery(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	e.mu.Lock()
	e.seq++
	issued := e.seq
	e.query = text
	e.mu.Unlock()

	return e.fetch(ctx, issued, text)
}

// Refresh re-fetches the unfiltered list. Mutation handlers call it so
// the visible list never drifts from backend state.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	e.seq++
	issued := e.seq
	e.query = ""
	e.mu.Unlock()

	return e.fetch(ctx, issued, "")
}

func (e *Engine) fetch(ctx context.Context, issued uint64, text string) error {
	var (
		list []domain.Product
		err  error
	)
	if text == "" {
		list, err = e.api.ListProducts(ctx)
	} else {
		list, err = e.api.SearchProducts(ctx, text)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if issued != e.seq {
		// Superseded by a newer query; drop silently, error included.
		log.Debug().Str("query", text).Msg("stale query response discarded")
		return nil
	}
	if err != nil {
		return err
	}
	e.products = list
	return nil
}

// SetCategoryFilter narrows the visible list to one category id, or
// FilterAll for no narrowing. Purely local; issues no request.
func (e *Engine) SetCategoryFilter(categoryID string) {
	if categoryID == "" {
		categoryID = FilterAll
	}
	e.mu.Lock()
	e.filter = categoryID
	e.mu.Unlock()
}

// Visible returns the category-filtered view of the last applied server
// result, in backend response order.
func (e *Engine) Visible() []domain.Product {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.filter == FilterAll {
		out := make([]domain.Product, len(e.products))
		copy(out, e.products)
		return out
	}
	out := make([]domain.Product, 0, len(e.products))
	for _, p := range e.products {
		if p.Category.ID == e.filter {
			out = append(out, p)
		}
	}
	return out
}

// Query reports the current query text.
func (e *Engine) Query() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Categories fetches the category list for the filter dropdown.
func (e *Engine) Categories(ctx context.Context) ([]domain.Category, error) {
	return e.api.ListCategories(ctx)
}
