package domain

import (
	"encoding/json"
	"strings"
)

// MaxImagesPerProduct caps persisted plus staged images for one product.
const MaxImagesPerProduct = 5

type Product struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Code        string       `json:"code"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Category    CategoryRef  `json:"category"`
	Images      []ImageAsset `json:"images"`
}

// ImageAsset is an image confirmed stored at the asset store. Immutable.
type ImageAsset struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type Category struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// CategoryRef normalizes the two shapes the backend serializes a product
// category as: a bare id string, or an embedded {_id, name} object.
type CategoryRef struct {
	ID   string
	Name string
}

func (c *CategoryRef) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*c = CategoryRef{}
		return nil
	}
	if s[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*c = CategoryRef{ID: id}
		return nil
	}
	var obj struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*c = CategoryRef{ID: obj.ID, Name: obj.Name}
	return nil
}

func (c CategoryRef) MarshalJSON() ([]byte, error) {
	if c.Name == "" {
		return json.Marshal(c.ID)
	}
	return json.Marshal(struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}{c.ID, c.Name})
}

// FilePayload is a locally picked file awaiting upload.
type FilePayload struct {
	Name        string
	ContentType string
	Data        []byte
}

// ProductInput carries the text fields of an add or update submission.
type ProductInput struct {
	Name        string
	Code        string
	Description string
	Price       float64
	CategoryID  string
}
