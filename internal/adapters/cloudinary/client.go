package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mrkjhm/belisita-catalog/internal/domain"
)

// Signer obtains a one-time upload credential from the backend.
type Signer interface {
	SignUpload(ctx context.Context) (domain.UploadCredential, error)
}

// Client pushes staged files directly to the Cloudinary upload endpoint
// using backend-signed credentials, so no long-lived secret ever leaves
// the backend.
type Client struct {
	signer     Signer
	uploadURL  string
	apiKey     string
	httpClient *http.Client
}

// UploadURL builds the image upload endpoint for a cloud name.
func UploadURL(cloudName string) string {
	return fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cloudName)
}

func New(signer Signer, uploadURL, apiKey string) *Client {
	return &Client{
		signer:     signer,
		uploadURL:  uploadURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type uploadResp struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Upload converts one staged file into a durable ImageAsset. A fresh
// credential is requested per file: the signature embeds its timestamp
// and is single-use, so reusing one across files would mismatch.
func (c *Client) Upload(ctx context.Context, file domain.FilePayload) (domain.ImageAsset, error) {
	cred, err := c.signer.SignUpload(ctx)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	cred.APIKey = c.apiKey

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: err}
	}
	if _, err := fw.Write(file.Data); err != nil {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: err}
	}
	fields := map[string]string{
		"timestamp":     strconv.FormatInt(cred.Timestamp, 10),
		"signature":     cred.Signature,
		"upload_preset": cred.UploadPreset,
		"api_key":       cred.APIKey,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: err}
		}
	}
	if err := mw.Close(); err != nil {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		var storeErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &storeErr) == nil && storeErr.Error.Message != "" {
			return domain.ImageAsset{}, &domain.UploadError{
				FileName: file.Name,
				Cause:    fmt.Errorf("asset store status %d: %s", res.StatusCode, storeErr.Error.Message),
			}
		}
		return domain.ImageAsset{}, &domain.UploadError{
			FileName: file.Name,
			Cause:    fmt.Errorf("asset store status %d: %s", res.StatusCode, string(b)),
		}
	}

	var out uploadResp
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: err}
	}
	if out.SecureURL == "" || out.PublicID == "" {
		return domain.ImageAsset{}, &domain.UploadError{FileName: file.Name, Cause: fmt.Errorf("asset store response incomplete")}
	}
	return domain.ImageAsset{PublicID: out.PublicID, URL: out.SecureURL}, nil
}

// UploadBatch uploads files independently and concurrently. A per-file
// failure never cancels siblings: the caller gets every success plus the
// failed files paired back to their submitted positions. Succeeded assets
// appear in completion order, which becomes their display order.
func (c *Client) UploadBatch(ctx context.Context, files []domain.FilePayload) domain.BatchResult {
	type outcome struct {
		idx   int
		asset domain.ImageAsset
		err   error
	}

	results := make(chan outcome, len(files))
	var g errgroup.Group
	g.SetLimit(domain.MaxImagesPerProduct)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			asset, err := c.Upload(ctx, f)
			results <- outcome{idx: i, asset: asset, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	var res domain.BatchResult
	for o := range results {
		if o.err != nil {
			log.Warn().Err(o.err).Str("file", files[o.idx].Name).Msg("image upload failed")
			res.Failed = append(res.Failed, files[o.idx])
			res.FailedIdx = append(res.FailedIdx, o.idx)
			continue
		}
		res.Succeeded = append(res.Succeeded, o.asset)
	}
	return res
}
