package timeutil

import (
	"testing"
	"time"
)

func TestLoadLocationKeepsConfiguredZone(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	winter := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).In(loc)
	if _, offset := winter.Zone(); offset != -5*60*60 {
		t.Fatalf("expected UTC-5 in January, got %d", offset)
	}
}

func TestLoadLocationDefault(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loc.String() != defaultZone {
		t.Fatalf("expected %s, got %s", defaultZone, loc)
	}
}

func TestLoadLocationUnknownZone(t *testing.T) {
	if _, err := LoadLocation("Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected an error for an unknown zone")
	}
}

func TestDayStamp(t *testing.T) {
	loc, _ := LoadLocation("Asia/Shanghai")
	// 17:00 UTC is already the next day in UTC+8.
	got := DayStamp(time.Date(2024, 3, 9, 17, 0, 0, 0, time.UTC), loc)
	if got != "20240310" {
		t.Fatalf("expected 20240310, got %s", got)
	}
}
