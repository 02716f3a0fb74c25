package ratelimit

import "context"

// RateLimiter caps outbound calls per collaborator across all instances.
type RateLimiter interface {
	Allow(ctx context.Context, collaborator string) (bool, error)
	Wait(ctx context.Context, collaborator string) error
}

// Unlimited admits every call. It stands in when no shared limiter is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

func (Unlimited) Wait(ctx context.Context, _ string) error { return ctx.Err() }
