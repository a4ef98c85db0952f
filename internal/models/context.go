package models

import "context"

type operationContextKey struct{}

// OperationContext records who triggered a ledger mutation and through which surface
type OperationContext struct {
	ActorId int64  // chat id of the admin or user, 0 for background work
	Source  string // "chat", "webhook", "listener", "cli"
}

// WithOperationContext attaches the initiating actor to a context.
func WithOperationContext(ctx context.Context, oc OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// GetOperationContext returns the initiating actor, or a zero value if absent.
func GetOperationContext(ctx context.Context) OperationContext {
	oc, _ := ctx.Value(operationContextKey{}).(OperationContext)
	return oc
}
