package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	t.Run("nil transaction leaves context untouched", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, ctx, WithTx(ctx, nil))
		_, ok := From(ctx)
		assert.False(t, ok)
	})

	t.Run("transaction round-trips through context", func(t *testing.T) {
		sqlTx := &sql.Tx{}
		ctx := WithTx(context.Background(), sqlTx)
		got, ok := From(ctx)
		assert.True(t, ok)
		assert.Same(t, sqlTx, got)
		assert.Same(t, sqlTx, ExecutorFrom(ctx, nil))
	})

	t.Run("falls back to the database handle", func(t *testing.T) {
		db := &sql.DB{}
		assert.Same(t, db, ExecutorFrom(context.Background(), db))
	})
}

func TestAfterCommit(t *testing.T) {
	t.Run("runs immediately without a transaction", func(t *testing.T) {
		ran := false
		AfterCommit(context.Background(), func(context.Context) { ran = true })
		assert.True(t, ran)
	})

	t.Run("waits for the commit and runs hooks once in order", func(t *testing.T) {
		ctx := WithTx(context.Background(), &sql.Tx{})
		var order []int
		AfterCommit(ctx, func(context.Context) { order = append(order, 1) })
		AfterCommit(ctx, func(context.Context) { order = append(order, 2) })
		assert.Empty(t, order)

		Committed(ctx)
		assert.Equal(t, []int{1, 2}, order)

		Committed(ctx)
		assert.Equal(t, []int{1, 2}, order)
	})

	t.Run("committing without a transaction is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() { Committed(context.Background()) })
	})
}
