package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRefNormalization(t *testing.T) {
	t.Run("bare id string", func(t *testing.T) {
		var p Product
		require.NoError(t, json.Unmarshal([]byte(`{"_id":"p1","category":"cat-9"}`), &p))
		assert.Equal(t, "cat-9", p.Category.ID)
		assert.Empty(t, p.Category.Name)
	})

	t.Run("embedded object", func(t *testing.T) {
		var p Product
		require.NoError(t, json.Unmarshal([]byte(`{"_id":"p1","category":{"_id":"cat-9","name":"Mirror"}}`), &p))
		assert.Equal(t, "cat-9", p.Category.ID)
		assert.Equal(t, "Mirror", p.Category.Name)
	})

	t.Run("null category", func(t *testing.T) {
		var p Product
		require.NoError(t, json.Unmarshal([]byte(`{"_id":"p1","category":null}`), &p))
		assert.Empty(t, p.Category.ID)
	})

	t.Run("images keep backend order", func(t *testing.T) {
		var p Product
		raw := `{"_id":"p1","images":[{"url":"u1","public_id":"i1"},{"url":"u2","public_id":"i2"}]}`
		require.NoError(t, json.Unmarshal([]byte(raw), &p))
		require.Len(t, p.Images, 2)
		assert.Equal(t, "i1", p.Images[0].PublicID)
		assert.Equal(t, "i2", p.Images[1].PublicID)
	})
}
