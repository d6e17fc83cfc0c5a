package chatctx

import "context"

type ctxKey string

const keyRID ctxKey = "chat_rid"

// WithRID stores the correlation id used in chat pipeline logs.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns the correlation id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}
