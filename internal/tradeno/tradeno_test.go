package tradeno

import (
	"errors"
	"strings"
	"testing"
	"time"

	"vpsBack/internal/models"
)

func fixedGenerator(t time.Time) *Generator {
	g := NewGenerator(time.UTC)
	g.now = func() time.Time { return t }
	return g
}

func TestNewRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	g := fixedGenerator(created)

	id := g.New(models.RailInApp, 4321)
	if !strings.HasPrefix(id, "90020240309140507") {
		t.Fatalf("unexpected layout: %s", id)
	}
	if len(id) != tagLen+stampLen+randLen+4 {
		t.Fatalf("unexpected length %d for %s", len(id), id)
	}

	tag, err := Rail(id)
	if err != nil {
		t.Fatalf("Rail: %v", err)
	}
	if tag != models.RailInApp {
		t.Fatalf("expected in-app tag, got %s", tag)
	}
	at, err := CreatedAt(id, time.UTC)
	if err != nil {
		t.Fatalf("CreatedAt: %v", err)
	}
	if !at.Equal(created) {
		t.Fatalf("expected %s, got %s", created, at)
	}
	uid, err := UserID(id)
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if uid != 4321 {
		t.Fatalf("expected user 4321, got %d", uid)
	}
}

func TestNewIsDistinctWithinSameSecond(t *testing.T) {
	g := fixedGenerator(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id := g.New(models.RailGateway, 7)
		seen[id] = struct{}{}
	}
	// 200 draws from 900000 values; a handful of collisions would indicate a broken source.
	if len(seen) < 195 {
		t.Fatalf("too many collisions: %d unique of 200", len(seen))
	}
}

func TestRailRejectsUnknownTag(t *testing.T) {
	_, err := Rail("8002024010100000012345617")
	if !errors.Is(err, models.ErrUnknownRail) {
		t.Fatalf("expected ErrUnknownRail, got %v", err)
	}
	if _, err := Rail("700"); err == nil {
		t.Fatal("expected error for short id")
	}
}
