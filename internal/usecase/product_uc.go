package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
	"github.com/mrkjhm/belisita-catalog/internal/gate"
	"github.com/mrkjhm/belisita-catalog/internal/query"
)

type ProductUC struct {
	API      domain.CatalogAPI
	Uploader domain.AssetUploader
	Catalog  *query.Engine
	Gate     *gate.Gate
}

func (uc *ProductUC) Get(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, errors.New("product id is required")
	}
	return uc.API.GetProduct(ctx, id)
}

// Create submits a new product. Staged files are uploaded first; the
// record is written with the assets that made it to the store. Files
// whose upload failed stay staged for retry and are reported in the
// returned batch result.
func (uc *ProductUC) Create(ctx context.Context, sess *EditSession, in domain.ProductInput) (domain.BatchResult, error) {
	if err := validateInput(in); err != nil {
		return domain.BatchResult{}, err
	}
	if sess.Staging.Len() == 0 {
		return domain.BatchResult{}, errors.New("at least one image is required")
	}

	res := uc.Uploader.UploadBatch(ctx, sess.Staging.Files())
	if len(res.Succeeded) == 0 {
		return res, errors.New("every image upload failed")
	}
	if err := uc.API.AddProduct(ctx, in, res.Succeeded); err != nil {
		return res, err
	}
	uc.settleStaging(sess, res)
	_ = uc.Catalog.Refresh(ctx)
	return res, nil
}

// Update rewrites the product record with the kept persisted images plus
// whatever staged files uploaded successfully.
func (uc *ProductUC) Update(ctx context.Context, sess *EditSession, in domain.ProductInput) (domain.BatchResult, error) {
	if sess.ProductID == "" {
		return domain.BatchResult{}, errors.New("session has no product")
	}
	if err := validateInput(in); err != nil {
		return domain.BatchResult{}, err
	}

	res := uc.Uploader.UploadBatch(ctx, sess.Staging.Files())
	if err := uc.API.UpdateProduct(ctx, sess.ProductID, in, sess.Persisted.Assets(), res.Succeeded); err != nil {
		return res, err
	}
	sess.Persisted.Append(res.Succeeded...)
	uc.settleStaging(sess, res)
	_ = uc.Catalog.Refresh(ctx)
	return res, nil
}

// AddImages uploads the staged files and attaches them to the product
// without touching its text fields.
func (uc *ProductUC) AddImages(ctx context.Context, sess *EditSession) (domain.BatchResult, error) {
	if sess.ProductID == "" {
		return domain.BatchResult{}, errors.New("session has no product")
	}
	if sess.Staging.Len() == 0 {
		return domain.BatchResult{}, errors.New("nothing staged")
	}

	res := uc.Uploader.UploadBatch(ctx, sess.Staging.Files())
	if len(res.Succeeded) == 0 {
		return res, errors.New("every image upload failed")
	}
	if err := uc.API.AddProductImages(ctx, sess.ProductID, res.Succeeded); err != nil {
		return res, err
	}
	sess.Persisted.Append(res.Succeeded...)
	uc.settleStaging(sess, res)
	return res, nil
}

// RequestDelete arms a confirmation for deleting the product. The commit
// removes it at the backend and refreshes the visible list.
func (uc *ProductUC) RequestDelete(id, name string) *gate.Request {
	return uc.Gate.Request(gate.KindProduct, id, name, func(ctx context.Context) error {
		if err := uc.API.RemoveProduct(ctx, id); err != nil {
			return err
		}
		return uc.Catalog.Refresh(ctx)
	})
}

// RequestRemoveImage arms a confirmation for deleting one persisted image
// of the session's product. The commit goes backend-first: the image
// leaves the list only after the backend confirms.
func (uc *ProductUC) RequestRemoveImage(sess *EditSession, publicID string) *gate.Request {
	return uc.Gate.Request(gate.KindImage, publicID, publicID, func(ctx context.Context) error {
		return sess.Persisted.Remove(ctx, publicID)
	})
}

func (uc *ProductUC) Confirm(ctx context.Context, kind gate.Kind, targetID string) error {
	return uc.Gate.Confirm(ctx, kind, targetID)
}

func (uc *ProductUC) Dismiss(kind gate.Kind, targetID string) error {
	return uc.Gate.Dismiss(kind, targetID)
}

func (uc *ProductUC) settleStaging(sess *EditSession, res domain.BatchResult) {
	if len(res.Failed) == 0 {
		sess.Staging.Clear()
		return
	}
	sess.Staging.Retain(res.FailedIdx...)
}

func validateInput(in domain.ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("product name is required")
	}
	if in.Price < 0 {
		return errors.New("price must not be negative")
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		return errors.New("a category must be selected")
	}
	return nil
}
