package tx

import (
	"context"
	"database/sql"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Executor is satisfied by both *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txState struct {
	tx *sql.Tx

	mu          sync.Mutex
	afterCommit []func(ctx context.Context)
}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, &txState{tx: tx})
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	st, ok := ctx.Value(txKey).(*txState)
	if !ok {
		return nil, false
	}
	return st.tx, true
}

// ExecutorFrom returns the transaction carried by ctx, falling back to db.
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// AfterCommit defers fn until the transaction carried by ctx commits. Without
// a transaction in ctx, fn runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	st, ok := ctx.Value(txKey).(*txState)
	if !ok {
		fn(ctx)
		return
	}
	st.mu.Lock()
	st.afterCommit = append(st.afterCommit, fn)
	st.mu.Unlock()
}

// Committed runs the hooks registered on the transaction in ctx, in
// registration order. Transaction runners call it once after Commit succeeds.
func Committed(ctx context.Context) {
	st, ok := ctx.Value(txKey).(*txState)
	if !ok {
		return
	}
	st.mu.Lock()
	hooks := st.afterCommit
	st.afterCommit = nil
	st.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}
