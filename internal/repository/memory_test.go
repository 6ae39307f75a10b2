package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/collections/internal/models"
)

func TestImagePath(t *testing.T) {
	p := ImagePath("owner-1", "cluster-1", "photos/../cat.png")

	assert.True(t, strings.HasPrefix(p, "owner-1/cluster-1/"))
	assert.True(t, strings.HasSuffix(p, "-cat.png"))
	assert.Len(t, strings.Split(p, "/"), 3)

	assert.True(t, strings.HasSuffix(ImagePath("o", "c", ""), "-image"))
	assert.True(t, strings.HasSuffix(ImagePath("o", "c", `C:\pics\dog.jpg`), "-dog.jpg"))
}

func TestMemoryCollections(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCollections()

	path, err := repo.PutImage(ctx, "owner-1", "c1", []byte{1, 2, 3}, "cat.png")
	require.NoError(t, err)

	data, ok := repo.Image(path)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)

	rec := models.ClusterRecord{
		ID:     "c1",
		Title:  "Cat Collection",
		Images: []models.ImageRef{{ID: "cat.png-0", URL: path, Alt: "cat.png"}},
		Tags:   []string{"cat"},
	}

	id, err := repo.PutClusterRecord(ctx, "owner-1", rec)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	rec.Title = "Cats"
	_, err = repo.PutClusterRecord(ctx, "owner-1", rec)
	require.NoError(t, err)

	list, err := repo.ListClusters(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cats", list[0].Title)

	other, err := repo.ListClusters(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.ErrorIs(t, repo.DeleteCluster(ctx, "owner-2", "c1"), ErrCollectionNotFound)
	require.NoError(t, repo.DeleteCluster(ctx, "owner-1", "c1"))

	_, ok = repo.Image(path)
	assert.False(t, ok)

	list, err = repo.ListClusters(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryCollectionsRequiresOwner(t *testing.T) {
	repo := NewMemoryCollections()

	_, err := repo.PutImage(context.Background(), "", "c", nil, "a.png")
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, err = repo.PutClusterRecord(context.Background(), "", models.ClusterRecord{ID: "c"})
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestNullableCentroidScan(t *testing.T) {
	var c nullableCentroid

	require.NoError(t, c.Scan(nil))
	assert.Nil(t, []float32(c))

	require.NoError(t, c.Scan("[0.5,0.25]"))
	assert.Equal(t, []float32{0.5, 0.25}, []float32(c))

	require.NoError(t, c.Scan([]byte("[1]")))
	assert.Equal(t, []float32{1}, []float32(c))

	assert.ErrorIs(t, c.Scan(42), errHalfvecScanInvalidType)
}
