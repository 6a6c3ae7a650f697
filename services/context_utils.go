package services

import "context"

// persistentContext detaches background work (delivery, acknowledgment
// creation) from the request context so it survives the response being sent.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
