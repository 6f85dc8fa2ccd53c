package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
	"github.com/mrkjhm/belisita-catalog/internal/gate"
)

type CategoryUC struct {
	API  domain.CatalogAPI
	Gate *gate.Gate
}

func (uc *CategoryUC) List(ctx context.Context) ([]domain.Category, error) {
	return uc.API.ListCategories(ctx)
}

func (uc *CategoryUC) Add(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("category name is required")
	}
	return uc.API.AddCategory(ctx, name)
}

func (uc *CategoryUC) Update(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("category name is required")
	}
	return uc.API.UpdateCategory(ctx, id, name)
}

// RequestDelete arms a confirmation for deleting the category. Products
// referencing it are not updated or blocked; they keep a dangling
// reference, matching backend behavior.
func (uc *CategoryUC) RequestDelete(id, name string) *gate.Request {
	return uc.Gate.Request(gate.KindCategory, id, name, func(ctx context.Context) error {
		return uc.API.DeleteCategory(ctx, id)
	})
}

func (uc *CategoryUC) Confirm(ctx context.Context, id string) error {
	return uc.Gate.Confirm(ctx, gate.KindCategory, id)
}

func (uc *CategoryUC) Dismiss(id string) error {
	return uc.Gate.Dismiss(gate.KindCategory, id)
}
