package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

type RequestData struct {
	UserID uuid.UUID
	Role   string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

func GetRequestData(ctx context.Context) *RequestData {
	data, _ := ctx.Value(contextKey{}).(*RequestData)
	return data
}
