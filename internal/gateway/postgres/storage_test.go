package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway/postgres"
	"github.com/dom/pulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Upload(t *testing.T) {
	dir := t.TempDir()
	storage := postgres.NewLocalStorage(dir, "http://localhost:8080/storage/")
	ctx := context.Background()

	require.NoError(t, storage.Upload(ctx, "event-covers", "ABC.jpg", []byte("one"), "image/jpeg", false))
	data, err := os.ReadFile(filepath.Join(dir, "event-covers", "ABC.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	err = storage.Upload(ctx, "event-covers", "ABC.jpg", []byte("two"), "image/jpeg", false)
	testutil.AssertRemoteError(t, err, domain.ErrConflict, "The resource already exists")

	require.NoError(t, storage.Upload(ctx, "event-covers", "ABC.jpg", []byte("three"), "image/jpeg", true))
	data, err = os.ReadFile(filepath.Join(dir, "event-covers", "ABC.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))

	assert.Equal(t, "http://localhost:8080/storage/event-covers/ABC.jpg", storage.PublicURL("event-covers", "/ABC.jpg"))
}

func TestLocalStorage_RejectsEscapingPaths(t *testing.T) {
	storage := postgres.NewLocalStorage(t.TempDir(), "http://localhost")
	ctx := context.Background()

	for _, path := range []string{"../outside.jpg", "a/../../outside.jpg", "", "."} {
		t.Run(path, func(t *testing.T) {
			err := storage.Upload(ctx, "event-covers", path, []byte("x"), "image/jpeg", true)
			testutil.AssertValidationError(t, err, "path")
		})
	}
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	storage := postgres.NewLocalStorage(t.TempDir(), "http://localhost")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := storage.Upload(ctx, "event-covers", "A.jpg", []byte("x"), "image/jpeg", true)
	assert.ErrorIs(t, err, context.Canceled)
}
