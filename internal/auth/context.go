package auth

import "context"

type contextKey struct{}

// Owner is the authenticated list owner attached to a request.
type Owner struct {
	ID    string
	Email string
}

func WithOwner(ctx context.Context, o Owner) context.Context {
	return context.WithValue(ctx, contextKey{}, o)
}

func FromContext(ctx context.Context) (Owner, bool) {
	o, ok := ctx.Value(contextKey{}).(Owner)
	return o, ok
}

func OwnerID(ctx context.Context) string {
	o, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return o.ID
}
