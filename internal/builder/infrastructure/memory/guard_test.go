package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmationGuard(t *testing.T) {
	ctx := context.Background()
	g := NewConfirmationGuard(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	seen, err := g.Seen(ctx, "confirm:s1:k1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, _ = g.Seen(ctx, "confirm:s1:k1")
	assert.True(t, seen)

	require.NoError(t, g.Release(ctx, "confirm:s1:k1"))
	seen, _ = g.Seen(ctx, "confirm:s1:k1")
	assert.False(t, seen, "released keys can be claimed again")

	now = now.Add(2 * time.Minute)
	seen, _ = g.Seen(ctx, "confirm:s1:k1")
	assert.False(t, seen, "expired claims do not block")

	_, _ = g.Seen(ctx, "confirm:s1:k2")
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, g.Sweep())
}
