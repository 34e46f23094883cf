package auth

import (
	"context"
	"errors"

	"agent-console/internal/identity"
)

type ctxKey int

const (
	ctxIdentity ctxKey = iota
	ctxRole
	ctxToken
)

func WithIdentity(ctx context.Context, id identity.AgentIdentity, role string) context.Context {
	ctx = context.WithValue(ctx, ctxIdentity, id)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

// Agent returns the authenticated agent identity.
func Agent(ctx context.Context) (identity.AgentIdentity, error) {
	if id, ok := ctx.Value(ctxIdentity).(identity.AgentIdentity); ok && id.AgentID != "" {
		return id, nil
	}
	return identity.AgentIdentity{}, errors.New("agent identity not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

func withToken(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, ctxToken, raw)
}

// BearerToken returns the raw access token of the request, if any.
func BearerToken(ctx context.Context) string {
	s, _ := ctx.Value(ctxToken).(string)
	return s
}
