//go:build integration

package persona

import (
	"context"
	"testing"

	"github.com/deldesir/gateway/internal/storage"
	"github.com/deldesir/gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Knowledge_RustFS(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "personas",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	store := NewS3Knowledge(client, "/knowledge/")

	text, err := store.Load(ctx, "ada")
	require.NoError(t, err)
	assert.Empty(t, text)

	require.NoError(t, store.Save(ctx, "ada", "  Wrote the first program.\n"))

	text, err = store.Load(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "Wrote the first program.", text)

	raw, err := client.GetObject(ctx, "knowledge/ada.md")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "first program")

	require.NoError(t, store.Delete(ctx, "ada"))

	_, err = client.GetObject(ctx, "knowledge/ada.md")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
