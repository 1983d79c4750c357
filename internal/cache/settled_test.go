package cache

import (
	"context"
	"testing"
)

func TestSettledKey(t *testing.T) {
	if got := settledKey("700x"); got != "order:settled:700x" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *SettledCache
	if err := c.MarkSettled(context.Background(), "700x"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	ok, err := c.IsSettled(context.Background(), "700x")
	if err != nil || ok {
		t.Fatalf("expected miss, got %v %v", ok, err)
	}
}
