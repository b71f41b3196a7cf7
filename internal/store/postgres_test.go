package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real database only when LINKLOOM_TEST_POSTGRES is set.
func TestPostgresHistory(t *testing.T) {
	url := os.Getenv("LINKLOOM_TEST_POSTGRES")
	if url == "" {
		t.Skip("LINKLOOM_TEST_POSTGRES not set")
	}
	ctx := context.Background()
	h, err := OpenHistory(ctx, url, "")
	require.NoError(t, err)
	defer h.Close()

	id := uuid.NewString()
	created := time.Now().UTC().Truncate(time.Millisecond)
	in := Run{ID: id, Topic: "rust", Seeds: []string{"alice"}, Total: 3, Returned: 1, Duration: 250 * time.Millisecond, CreatedAt: created}
	require.NoError(t, h.PutRun(ctx, in))

	got, err := h.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "rust", got.Topic)
	assert.Equal(t, []string{"alice"}, got.Seeds)
	assert.Equal(t, 250*time.Millisecond, got.Duration)
	assert.True(t, created.Equal(got.CreatedAt))

	n, err := h.CountRunsWithin(ctx, created, created.Add(time.Second))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	_, err = h.GetRun(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenHistoryPicksBackend(t *testing.T) {
	h, err := OpenHistory(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = OpenHistory(context.Background(), "", t.TempDir()+"/h.db")
	require.NoError(t, err)
	defer h.Close()
	_, isSQLite := h.(*DB)
	assert.True(t, isSQLite)
}
