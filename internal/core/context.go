package core

import "context"

type contextKey string

const ctxKeyScope contextKey = "merchant_scope"

// ContextWithScope stores the caller's tenant scope.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, ctxKeyScope, scope)
}

// ScopeFromContext returns the tenant scope set by ContextWithScope.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(ctxKeyScope).(Scope)
	return scope, ok && scope.MerchantID != ""
}
