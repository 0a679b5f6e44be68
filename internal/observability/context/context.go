package context

import (
	stdctx "context"
	"strings"
)

type requestIDKey struct{}
type batchIDKey struct{}
type roleKey struct{}

func WithRequestID(ctx stdctx.Context, requestID string) stdctx.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return stdctx.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithBatchID tags the context with the identifier of an invoice generation run.
func WithBatchID(ctx stdctx.Context, batchID string) stdctx.Context {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return ctx
	}
	return stdctx.WithValue(ctx, batchIDKey{}, batchID)
}

func BatchIDFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(batchIDKey{}).(string)
	return value
}

// WithRole records the caller role forwarded by the authentication gateway.
func WithRole(ctx stdctx.Context, role string) stdctx.Context {
	role = strings.TrimSpace(role)
	if role == "" {
		return ctx
	}
	return stdctx.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(roleKey{}).(string)
	return value
}
