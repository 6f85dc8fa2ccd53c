package domain

import "context"

// UploadCredential is the short-lived, single-use credential the backend
// signs for one direct upload to the asset store.
type UploadCredential struct {
	Timestamp    int64  `json:"timestamp"`
	Signature    string `json:"signature"`
	UploadPreset string `json:"uploadPreset"`
	APIKey       string `json:"-"`
}

// BatchResult is the partial outcome of a concurrent upload batch. Failed
// files stay staged so the operator can retry them. FailedIdx holds the
// positions of the failed files in the submitted slice, pairing outcomes
// by request identity rather than completion order.
type BatchResult struct {
	Succeeded []ImageAsset
	Failed    []FilePayload
	FailedIdx []int
}

type AssetUploader interface {
	Upload(ctx context.Context, file FilePayload) (ImageAsset, error)
	UploadBatch(ctx context.Context, files []FilePayload) BatchResult
}

// PreviewStore issues revocable preview handles for staged files.
type PreviewStore interface {
	Create(name string, data []byte) (string, error)
	Revoke(handle string) error
}

// CatalogAPI is the backend contract the manager consumes.
type CatalogAPI interface {
	SignUpload(ctx context.Context) (UploadCredential, error)

	ListProducts(ctx context.Context) ([]Product, error)
	SearchProducts(ctx context.Context, term string) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	AddProduct(ctx context.Context, in ProductInput, images []ImageAsset) error
	UpdateProduct(ctx context.Context, id string, in ProductInput, existing, added []ImageAsset) error
	AddProductImages(ctx context.Context, id string, images []ImageAsset) error
	DeleteProductImage(ctx context.Context, id, publicID string) error
	RemoveProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]Category, error)
	AddCategory(ctx context.Context, name string) error
	UpdateCategory(ctx context.Context, id, name string) error
	DeleteCategory(ctx context.Context, id string) error
}
