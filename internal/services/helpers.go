package services

import (
	"context"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
