package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Non-relational stores only read Ctx.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// For wraps ctx without a transaction.
func For(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// Context returns Ctx, or context.Background() when unset.
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// DB returns the transaction when one is attached, otherwise fallback, bound to the context.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	t := c.Tx
	if t == nil {
		t = fallback
	}
	return t.WithContext(c.Context())
}
