package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
)

func TestSignUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products/cloudinary-signature", r.URL.Path)
		fmt.Fprintln(w, `{"success":true,"timestamp":1700000000,"signature":"abc","uploadPreset":"ml_default"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	cred, err := c.SignUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), cred.Timestamp)
	assert.Equal(t, "abc", cred.Signature)
	assert.Equal(t, "ml_default", cred.UploadPreset)
}

func TestSignUploadMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).SignUpload(context.Background())
	var se *domain.SigningError
	require.ErrorAs(t, err, &se)
}

func TestListProductsMixedCategoryShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success":true,"data":[
			{"_id":"p1","name":"Lamp","category":{"_id":"c1","name":"Lighting"}},
			{"_id":"p2","name":"Mug","category":"c2"}
		]}`)
	}))
	defer srv.Close()

	list, err := NewClient(srv.URL, nil).ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].Category.ID)
	assert.Equal(t, "Lighting", list[0].Category.Name)
	assert.Equal(t, "c2", list[1].Category.ID)
	assert.Empty(t, list[1].Category.Name)
}

func TestGetProductNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveProductSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/products/remove/p1", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-1"})
	err := NewClient(srv.URL, ts).RemoveProduct(context.Background(), "p1")
	require.NoError(t, err)
}

func TestEnvelopeFailureBecomesMutationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success":false,"message":"code already in use"}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, nil).AddCategory(context.Background(), "Lighting")
	var me *domain.MutationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "code already in use", me.Message)
}

func TestAddProductForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Lamp", r.FormValue("name"))
		assert.Equal(t, "19.5", r.FormValue("price"))
		assert.Equal(t, "c1", r.FormValue("category"))
		assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/b.png"}, r.MultipartForm.Value["images"])
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer srv.Close()

	in := domain.ProductInput{Name: "Lamp", Price: 19.5, CategoryID: "c1"}
	images := []domain.ImageAsset{
		{PublicID: "a", URL: "https://cdn/a.png"},
		{PublicID: "b", URL: "https://cdn/b.png"},
	}
	require.NoError(t, NewClient(srv.URL, nil).AddProduct(context.Background(), in, images))
}

func TestUpdateProductKeepsExistingImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, []string{"https://cdn/keep.png"}, r.MultipartForm.Value["existingImages"])
		assert.Equal(t, []string{"https://cdn/new.png"}, r.MultipartForm.Value["images"])
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer srv.Close()

	existing := []domain.ImageAsset{{PublicID: "keep", URL: "https://cdn/keep.png"}}
	added := []domain.ImageAsset{{PublicID: "new", URL: "https://cdn/new.png"}}
	err := NewClient(srv.URL, nil).UpdateProduct(context.Background(), "p1", domain.ProductInput{Name: "Lamp", CategoryID: "c1"}, existing, added)
	require.NoError(t, err)
}

func TestDeleteProductImagePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/products/deleteImage/p1", r.URL.Path)
		var body struct {
			PublicID string `json:"public_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "img-7", body.PublicID)
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL, nil).DeleteProductImage(context.Background(), "p1", "img-7"))
}
