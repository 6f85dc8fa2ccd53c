package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
	"github.com/mrkjhm/belisita-catalog/internal/gate"
	"github.com/mrkjhm/belisita-catalog/internal/query"
)

type fakeAPI struct {
	products map[string]*domain.Product

	added       []domain.ProductInput
	addedImages [][]domain.ImageAsset
	updated     map[string][]domain.ImageAsset
	attached    map[string][]domain.ImageAsset
	removed     []string
	deletedImgs []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		products: make(map[string]*domain.Product),
		updated:  make(map[string][]domain.ImageAsset),
		attached: make(map[string][]domain.ImageAsset),
	}
}

func (f *fakeAPI) SignUpload(ctx context.Context) (domain.UploadCredential, error) {
	return domain.UploadCredential{Timestamp: 1, Signature: "s"}, nil
}

func (f *fakeAPI) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeAPI) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	return f.ListProducts(ctx)
}

func (f *fakeAPI) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeAPI) AddProduct(ctx context.Context, in domain.ProductInput, images []domain.ImageAsset) error {
	f.added = append(f.added, in)
	f.addedImages = append(f.addedImages, images)
	return nil
}

func (f *fakeAPI) UpdateProduct(ctx context.Context, id string, in domain.ProductInput, existing, added []domain.ImageAsset) error {
	f.updated[id] = append(existing, added...)
	return nil
}

func (f *fakeAPI) AddProductImages(ctx context.Context, id string, images []domain.ImageAsset) error {
	f.attached[id] = append(f.attached[id], images...)
	return nil
}

func (f *fakeAPI) DeleteProductImage(ctx context.Context, id, publicID string) error {
	f.deletedImgs = append(f.deletedImgs, publicID)
	return nil
}

func (f *fakeAPI) RemoveProduct(ctx context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.products, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeAPI) ListCategories(ctx context.Context) ([]domain.Category, error) { return nil, nil }
func (f *fakeAPI) AddCategory(ctx context.Context, name string) error            { return nil }
func (f *fakeAPI) UpdateCategory(ctx context.Context, id, name string) error     { return nil }
func (f *fakeAPI) DeleteCategory(ctx context.Context, id string) error           { return nil }

// fakeUploader succeeds for every file except those named in failNames.
type fakeUploader struct {
	failNames map[string]bool
}

func (u *fakeUploader) Upload(ctx context.Context, file domain.FilePayload) (domain.ImageAsset, error) {
	if u.failNames[file.Name] {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: errors.New("store unavailable")}
	}
	return domain.ImageAsset{PublicID: file.Name, URL: "https://cdn/" + file.Name}, nil
}

func (u *fakeUploader) UploadBatch(ctx context.Context, files []domain.FilePayload) domain.BatchResult {
	var res domain.BatchResult
	for i, f := range files {
		asset, err := u.Upload(ctx, f)
		if err != nil {
			res.Failed = append(res.Failed, f)
			res.FailedIdx = append(res.FailedIdx, i)
			continue
		}
		res.Succeeded = append(res.Succeeded, asset)
	}
	return res
}

type memPreviews struct {
	next    int
	revoked []string
}

func (m *memPreviews) Create(name string, data []byte) (string, error) {
	m.next++
	return fmt.Sprintf("preview-%d", m.next), nil
}

func (m *memPreviews) Revoke(handle string) error {
	m.revoked = append(m.revoked, handle)
	return nil
}

func newTestUC(api *fakeAPI, up *fakeUploader) (*ProductUC, *SessionRegistry) {
	uc := &ProductUC{
		API:      api,
		Uploader: up,
		Catalog:  query.NewEngine(api),
		Gate:     gate.New(nil),
	}
	return uc, NewSessionRegistry(api, &memPreviews{})
}

func stage(t *testing.T, sess *EditSession, names ...string) {
	t.Helper()
	files := make([]domain.FilePayload, len(names))
	for i, n := range names {
		files[i] = domain.FilePayload{Name: n, Data: []byte(n)}
	}
	require.NoError(t, sess.Staging.Stage(files...))
}

func TestCreateClearsStagingOnFullSuccess(t *testing.T) {
	api := newFakeAPI()
	uc, reg := newTestUC(api, &fakeUploader{})

	sess, err := reg.Open(context.Background(), "")
	require.NoError(t, err)
	stage(t, sess, "a.png", "b.png")

	res, err := uc.Create(context.Background(), sess, domain.ProductInput{Name: "Lamp", Price: 10, CategoryID: "c1"})
	require.NoError(t, err)

	assert.Len(t, res.Succeeded, 2)
	assert.Empty(t, res.Failed)
	require.Len(t, api.addedImages, 1)
	assert.Len(t, api.addedImages[0], 2)
	assert.Zero(t, sess.Staging.Len())
}

func TestCreatePartialFailureRetainsFailedFile(t *testing.T) {
	api := newFakeAPI()
	uc, reg := newTestUC(api, &fakeUploader{failNames: map[string]bool{"b.png": true}})

	sess, err := reg.Open(context.Background(), "")
	require.NoError(t, err)
	stage(t, sess, "a.png", "b.png")

	res, err := uc.Create(context.Background(), sess, domain.ProductInput{Name: "Lamp", Price: 10, CategoryID: "c1"})
	require.NoError(t, err)

	// The record is created with the one asset that made it.
	require.Len(t, api.addedImages, 1)
	require.Len(t, api.addedImages[0], 1)
	assert.Equal(t, "a.png", api.addedImages[0][0].PublicID)

	// The failed file stays staged for retry.
	require.Equal(t, 1, sess.Staging.Len())
	assert.Equal(t, "b.png", sess.Staging.Files()[0].Name)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "b.png", res.Failed[0].Name)
}

func TestCreateAllUploadsFailedAbortsSubmit(t *testing.T) {
	api := newFakeAPI()
	uc, reg := newTestUC(api, &fakeUploader{failNames: map[string]bool{"a.png": true}})

	sess, err := reg.Open(context.Background(), "")
	require.NoError(t, err)
	stage(t, sess, "a.png")

	_, err = uc.Create(context.Background(), sess, domain.ProductInput{Name: "Lamp", Price: 10, CategoryID: "c1"})
	require.Error(t, err)
	assert.Empty(t, api.added)
	assert.Equal(t, 1, sess.Staging.Len())
}

func TestCreateValidation(t *testing.T) {
	api := newFakeAPI()
	uc, reg := newTestUC(api, &fakeUploader{})

	sess, err := reg.Open(context.Background(), "")
	require.NoError(t, err)
	stage(t, sess, "a.png")

	cases := []struct {
		name string
		in   domain.ProductInput
	}{
		{"missing name", domain.ProductInput{Price: 10, CategoryID: "c1"}},
		{"negative price", domain.ProductInput{Name: "Lamp", Price: -1, CategoryID: "c1"}},
		{"missing category", domain.ProductInput{Name: "Lamp", Price: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Create(context.Background(), sess, tc.in)
			assert.Error(t, err)
		})
	}
	// Validation failures never touch the staged files.
	assert.Equal(t, 1, sess.Staging.Len())
}

func TestCreateRequiresStagedImage(t *testing.T) {
	api := newFakeAPI()
	uc, reg := newTestUC(api, &fakeUploader{})

	sess, err := reg.Open(context.Background(), "")
	require.NoError(t, err)

	_, err = uc.Create(context.Background(), sess, domain.ProductInput{Name: "Lamp", Price: 10, CategoryID: "c1"})
	assert.Error(t, err)
}

func TestUpdateMergesPersistedAndUploaded(t *testing.T) {
	api := newFakeAPI()
	api.products["p1"] = &domain.Product{
		ID:     "p1",
		Name:   "Lamp",
		Images: []domain.ImageAsset{{PublicID: "old", URL: "https://cdn/old"}},
	}
	uc, reg := newTestUC(api, &fakeUploader{})

	sess, err := reg.Open(context.Background(), "p1")
	require.NoError(t, err)
	stage(t, sess, "new.png")

	_, err = uc.Update(context.Background(), sess, domain.ProductInput{Name: "Lamp v2", Price: 12, CategoryID: "c1"})
	require.NoError(t, err)

	got := api.updated["p1"]
	require.Len(t, got, 2)
	assert.Equal(t, "old", got[0].PublicID)
	assert.Equal(t, "new.png", got[1].PublicID)

	// Uploaded assets become persisted, staging drains.
	assert.Equal(t, 2, sess.Persisted.Len())
	assert.Zero(t, sess.Staging.Len())
}

func TestSessionCapacityCountsPersisted(t *testing.T) {
	api := newFakeAPI()
	api.products["p1"] = &domain.Product{
		ID: "p1",
		Images: []domain.ImageAsset{
			{PublicID: "i1"}, {PublicID: "i2"}, {PublicID: "i3"}, {PublicID: "i4"},
		},
	}
	_, reg := newTestUC(api, &fakeUploader{})

	sess, err := reg.Open(context.Background(), "p1")
	require.NoError(t, err)

	stage(t, sess, "fifth.png")
	err = sess.Staging.Stage(domain.FilePayload{Name: "sixth.png"})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestAddImagesAttachesToProduct(t *testing.T) {
	api := newFakeAPI()
	api.products["p1"] = &domain.Product{ID: "p1"}
	uc, reg := newTestUC(api, &fakeUploader{})

	sess, err := reg.Open(context.Background(), "p1")
	require.NoError(t, err)
	stage(t, sess, "a.png", "b.png")

	res, err := uc.AddImages(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 2)
	assert.Len(t, api.attached["p1"], 2)
	assert.Equal(t, 2, sess.Persisted.Len())
}

func TestRequestDeleteCommitsOnConfirm(t *testing.T) {
	api := newFakeAPI()
	api.products["p1"] = &domain.Product{ID: "p1", Name: "Lamp"}
	uc, _ := newTestUC(api, &fakeUploader{})

	uc.RequestDelete("p1", "Lamp")
	assert.Empty(t, api.removed, "nothing committed before confirmation")

	require.NoError(t, uc.Confirm(context.Background(), gate.KindProduct, "p1"))
	assert.Equal(t, []string{"p1"}, api.removed)

	// The confirmation is consumed; a second confirm finds nothing armed.
	assert.ErrorIs(t, uc.Confirm(context.Background(), gate.KindProduct, "p1"), gate.ErrNoPending)
}

func TestRequestDeleteDismissed(t *testing.T) {
	api := newFakeAPI()
	api.products["p1"] = &domain.Product{ID: "p1", Name: "Lamp"}
	uc, _ := newTestUC(api, &fakeUploader{})

	uc.RequestDelete("p1", "Lamp")
	require.NoError(t, uc.Dismiss(gate.KindProduct, "p1"))
	assert.ErrorIs(t, uc.Confirm(context.Background(), gate.KindProduct, "p1"), gate.ErrNoPending)
	assert.Empty(t, api.removed)
}

func TestRequestRemoveImageBackendFirst(t *testing.T) {
	api := newFakeAPI()
	api.products["p1"] = &domain.Product{
		ID:     "p1",
		Images: []domain.ImageAsset{{PublicID: "img-1"}, {PublicID: "img-2"}},
	}
	uc, reg := newTestUC(api, &fakeUploader{})

	sess, err := reg.Open(context.Background(), "p1")
	require.NoError(t, err)

	uc.RequestRemoveImage(sess, "img-1")
	assert.Equal(t, 2, sess.Persisted.Len(), "list untouched before confirmation")

	require.NoError(t, uc.Confirm(context.Background(), gate.KindImage, "img-1"))
	assert.Equal(t, []string{"img-1"}, api.deletedImgs)
	assert.Equal(t, 1, sess.Persisted.Len())
}

func TestAbandonRevokesPreviews(t *testing.T) {
	api := newFakeAPI()
	previews := &memPreviews{}
	reg := NewSessionRegistry(api, previews)

	sess, err := reg.Open(context.Background(), "")
	require.NoError(t, err)
	stage(t, sess, "a.png", "b.png")

	reg.Abandon(sess.ID)
	assert.Len(t, previews.revoked, 2)

	_, err = reg.Get(sess.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
