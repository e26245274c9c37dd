package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusAggregatesChecks(t *testing.T) {
	svc := NewService()
	svc.Register("database", func(ctx context.Context) error { return nil })
	svc.Register("nil", nil)

	status, ok := svc.Status(context.Background())
	if !ok || status["database"] != "ok" {
		t.Fatalf("expected healthy, got %v ok=%v", status, ok)
	}
	if _, exists := status["nil"]; exists {
		t.Fatalf("nil checks must be ignored")
	}

	svc.Register("queue", func(ctx context.Context) error { return errors.New("dial tcp: refused") })
	status, ok = svc.Status(context.Background())
	if ok || status["queue"] != "error: dial tcp: refused" {
		t.Fatalf("expected unhealthy queue, got %v ok=%v", status, ok)
	}
}
