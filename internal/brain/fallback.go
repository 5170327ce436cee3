package brain

import (
	"context"
	"errors"
	"fmt"
)

// FallbackAdapter attempts a primary adapter first and falls back on error.
// Failover only happens before any delta reached the caller; a broken
// mid-stream response surfaces as a failure so the turn can be retried
// explicitly instead of splicing output from two providers.
type FallbackAdapter struct {
	primary  Adapter
	fallback Adapter
}

func NewFallbackAdapter(primary, fallback Adapter) *FallbackAdapter {
	return &FallbackAdapter{primary: primary, fallback: fallback}
}

func (a *FallbackAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	if a == nil || a.primary == nil {
		if a != nil && a.fallback != nil {
			return a.fallback.StreamResponse(ctx, req, onDelta)
		}
		return Response{}, fmt.Errorf("fallback adapter misconfigured")
	}

	delivered := false
	wrapped := func(delta string) error {
		delivered = true
		if onDelta == nil {
			return nil
		}
		return onDelta(delta)
	}

	resp, err := a.primary.StreamResponse(ctx, req, wrapped)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}
	if delivered || a.fallback == nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := a.fallback.StreamResponse(ctx, req, onDelta)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary adapter error: %w; fallback adapter error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}

func (a *FallbackAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.primary == nil {
		if a != nil && a.fallback != nil {
			return a.fallback.Complete(ctx, req)
		}
		return Response{}, fmt.Errorf("fallback adapter misconfigured")
	}

	resp, err := a.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || a.fallback == nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := a.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("primary adapter error: %w; fallback adapter error: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}
