package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
)

// Client speaks the catalog backend's JSON-over-HTTP contract. Responses
// arrive in a {success, message, data} envelope; success=false is
// surfaced as a MutationError carrying the backend's message.
type Client struct {
	baseURL    string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

// NewClient builds a client for the backend at baseURL. tokens supplies
// the bearer credential attached to destructive product mutations; it may
// be nil when the deployment leaves those endpoints open.
func NewClient(baseURL string, tokens oauth2.TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Categories []domain.Category `json:"categories"`

	// Signing endpoint fields.
	Timestamp    int64  `json:"timestamp"`
	Signature    string `json:"signature"`
	UploadPreset string `json:"uploadPreset"`
}

func (c *Client) SignUpload(ctx context.Context) (domain.UploadCredential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/products/cloudinary-signature", nil)
	if err != nil {
		return domain.UploadCredential{}, &domain.SigningError{Cause: err}
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UploadCredential{}, &domain.SigningError{Cause: err}
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return domain.UploadCredential{}, &domain.SigningError{Status: res.StatusCode}
	}
	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return domain.UploadCredential{}, &domain.SigningError{Cause: err}
	}
	if env.Signature == "" || env.Timestamp == 0 {
		return domain.UploadCredential{}, &domain.SigningError{Cause: fmt.Errorf("malformed signature payload")}
	}
	return domain.UploadCredential{
		Timestamp:    env.Timestamp,
		Signature:    env.Signature,
		UploadPreset: env.UploadPreset,
	}, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return c.fetchProducts(ctx, c.baseURL+"/products")
}

func (c *Client) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	return c.fetchProducts(ctx, c.baseURL+"/products/search?search="+url.QueryEscape(term))
}

func (c *Client) fetchProducts(ctx context.Context, u string) ([]domain.Product, error) {
	env, err := c.do(ctx, http.MethodGet, u, "", nil, false)
	if err != nil {
		return nil, err
	}
	var list []domain.Product
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return list, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	env, err := c.do(ctx, http.MethodGet, c.baseURL+"/products/"+url.PathEscape(id), "", nil, false)
	if err != nil {
		return nil, err
	}
	var p domain.Product
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return &p, nil
}

func (c *Client) AddProduct(ctx context.Context, in domain.ProductInput, images []domain.ImageAsset) error {
	body, contentType, err := productForm(in, nil, images)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, c.baseURL+"/products/add", contentType, body, true)
	return err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in domain.ProductInput, existing, added []domain.ImageAsset) error {
	body, contentType, err := productForm(in, existing, added)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, c.baseURL+"/products/update/"+url.PathEscape(id), contentType, body, true)
	return err
}

func (c *Client) AddProductImages(ctx context.Context, id string, images []domain.ImageAsset) error {
	payload, err := json.Marshal(map[string]any{"images": images})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, c.baseURL+"/products/add-image/"+url.PathEscape(id), "application/json", bytes.NewReader(payload), true)
	return err
}

func (c *Client) DeleteProductImage(ctx context.Context, id, publicID string) error {
	payload, err := json.Marshal(map[string]string{"public_id": publicID})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, c.baseURL+"/products/deleteImage/"+url.PathEscape(id), "application/json", bytes.NewReader(payload), true)
	return err
}

func (c *Client) RemoveProduct(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+"/products/remove/"+url.PathEscape(id), "application/json", nil, true)
	return err
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	env, err := c.do(ctx, http.MethodGet, c.baseURL+"/categories", "", nil, false)
	if err != nil {
		return nil, err
	}
	return env.Categories, nil
}

func (c *Client) AddCategory(ctx context.Context, name string) error {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, c.baseURL+"/categories/add", "application/json", bytes.NewReader(payload), false)
	return err
}

func (c *Client) UpdateCategory(ctx context.Context, id, name string) error {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, c.baseURL+"/categories/update/"+url.PathEscape(id), "application/json", bytes.NewReader(payload), false)
	return err
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+"/categories/delete/"+url.PathEscape(id), "application/json", nil, false)
	return err
}

// do runs one backend call and unwraps the response envelope. withAuth
// attaches the bearer token the way the admin frontend does for
// destructive product mutations.
func (c *Client) do(ctx context.Context, method, u, contentType string, body io.Reader, withAuth bool) (*envelope, error) {
	op := method + " " + strings.TrimPrefix(u, c.baseURL)

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if withAuth && c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%s: token: %w", op, err)
		}
		tok.SetAuthHeader(req)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		var env envelope
		if json.Unmarshal(b, &env) == nil && env.Message != "" {
			return nil, &domain.MutationError{Op: op, Status: res.StatusCode, Message: env.Message}
		}
		return nil, &domain.MutationError{Op: op, Status: res.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if !env.Success {
		return nil, &domain.MutationError{Op: op, Status: res.StatusCode, Message: env.Message}
	}
	return &env, nil
}

// productForm builds the multipart body for product add and update.
// Existing images ride along as existingImages so the backend knows to
// keep them; newly uploaded assets go under images.
func productForm(in domain.ProductInput, existing, added []domain.ImageAsset) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"name", in.Name},
		{"description", in.Description},
		{"price", strconv.FormatFloat(in.Price, 'f', -1, 64)},
		{"code", in.Code},
		{"category", in.CategoryID},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	for _, img := range existing {
		if err := mw.WriteField("existingImages", img.URL); err != nil {
			return nil, "", err
		}
	}
	for _, img := range added {
		if err := mw.WriteField("images", img.URL); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
