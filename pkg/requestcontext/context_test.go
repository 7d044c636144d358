package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	t.Run("falls back to wall clock", func(t *testing.T) {
		before := time.Now()
		got := Now(context.Background())
		assert.False(t, got.Before(before))
	})

	t.Run("returns pinned time", func(t *testing.T) {
		pinned := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		assert.Equal(t, pinned, Now(WithTime(context.Background(), pinned)))
	})
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "req-1", RequestID(WithRequestID(context.Background(), "req-1")))
}
