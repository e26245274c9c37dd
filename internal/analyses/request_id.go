package analyses

import "context"

type requestIDKey struct{}

// WithRequestID tags ctx with the HTTP request (or queue message) that started the work.
// The ID travels in every enqueued step message so worker logs join up with API logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
