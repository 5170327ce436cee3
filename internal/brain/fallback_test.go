package brain

import (
	"context"
	"errors"
	"testing"
)

type scriptedAdapter struct {
	deltas []string
	text   string
	err    error
	// failAfterDeltas makes the adapter emit its deltas and then fail.
	failAfterDeltas bool
	calls           int
}

func (a *scriptedAdapter) StreamResponse(_ context.Context, _ Request, onDelta DeltaHandler) (Response, error) {
	a.calls++
	if a.err != nil && !a.failAfterDeltas {
		return Response{}, a.err
	}
	for _, d := range a.deltas {
		if onDelta != nil {
			if err := onDelta(d); err != nil {
				return Response{}, err
			}
		}
	}
	if a.err != nil {
		return Response{}, a.err
	}
	return Response{Text: a.text}, nil
}

func (a *scriptedAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	return a.StreamResponse(ctx, req, nil)
}

func TestFallbackUsesSecondaryOnPrimaryError(t *testing.T) {
	primary := &scriptedAdapter{err: errors.New("primary down")}
	secondary := &scriptedAdapter{deltas: []string{"ok"}, text: "ok"}
	a := NewFallbackAdapter(primary, secondary)

	var got string
	resp, err := a.StreamResponse(context.Background(), Request{}, func(d string) error {
		got += d
		return nil
	})
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if resp.Text != "ok" || got != "ok" {
		t.Fatalf("resp.Text = %q, deltas = %q, want ok/ok", resp.Text, got)
	}
	if secondary.calls != 1 {
		t.Fatalf("secondary.calls = %d, want 1", secondary.calls)
	}
}

func TestFallbackDoesNotFailoverMidStream(t *testing.T) {
	primary := &scriptedAdapter{deltas: []string{"par"}, err: errors.New("stream broke"), failAfterDeltas: true}
	secondary := &scriptedAdapter{text: "never"}
	a := NewFallbackAdapter(primary, secondary)

	_, err := a.StreamResponse(context.Background(), Request{}, func(string) error { return nil })
	if err == nil {
		t.Fatalf("StreamResponse() error = nil, want mid-stream failure")
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary.calls = %d, want 0 (no mid-stream failover)", secondary.calls)
	}
}

func TestFallbackRespectsCancellation(t *testing.T) {
	primary := &scriptedAdapter{err: context.Canceled}
	secondary := &scriptedAdapter{text: "never"}
	a := NewFallbackAdapter(primary, secondary)

	_, err := a.StreamResponse(context.Background(), Request{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary.calls = %d, want 0", secondary.calls)
	}
}
