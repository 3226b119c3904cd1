package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraman82351/Task-management/config"
)

func TestOpenDrivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	backend, err := Open(ctx, config.StorageConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, backend)

	backend, err = Open(ctx, config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "attachments", backend.Bucket())

	_, err = Open(ctx, config.StorageConfig{Driver: "s3"})
	assert.Error(t, err)
}

func TestNewMinioClientValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", Bucket: "b"})
	assert.Error(t, err)

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)
}

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory("b")

	require.NoError(t, m.Put(ctx, "tasks/1/a.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"))
	assert.True(t, m.Has("tasks/1/a.pdf"))

	r, err := m.Get(ctx, "tasks/1/a.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, m.Delete(ctx, "tasks/1/a.pdf"))
	_, err = m.Get(ctx, "tasks/1/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryPutRejectsShortReader(t *testing.T) {
	t.Parallel()

	err := NewMemory("b").Put(context.Background(), "k", strings.NewReader("abc"), 10, "")
	assert.Error(t, err)
}
