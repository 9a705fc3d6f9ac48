package probe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptqa/prompteval/internal/models"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "ollama:phi3")
	require.NoError(t, err)
	require.False(t, found)

	want := models.ProbeResult{
		ModelID:  "ollama:phi3",
		Usable:   true,
		ProbedAt: time.Now().Truncate(time.Second),
		TTL:      15 * time.Minute,
	}
	require.NoError(t, store.Put(ctx, want))

	got, found, err := store.Get(ctx, "ollama:phi3")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want, got)

	require.NoError(t, store.Delete(ctx, "ollama:phi3"))
	_, found, err = store.Get(ctx, "ollama:phi3")
	require.NoError(t, err)
	require.False(t, found)

	// deleting a missing key is not an error
	require.NoError(t, store.Delete(ctx, "ollama:phi3"))
	require.NoError(t, store.Close())
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, models.ProbeResult{ModelID: "mock:a", Usable: false, ErrorKind: models.ProbeTransient}))
	require.NoError(t, store.Put(ctx, models.ProbeResult{ModelID: "mock:a", Usable: true}))

	got, found, err := store.Get(ctx, "mock:a")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, got.Usable, "later writes win")
	require.Empty(t, got.ErrorKind)
}
