package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"vpsBack/internal/models"
)

type stubStore struct {
	entries []models.OrderLogEntry
	err     error
}

func (s *stubStore) Append(_ context.Context, e models.OrderLogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestOrderAppendsEntry(t *testing.T) {
	store := &stubStore{}
	r := NewRecorder(store, "", time.UTC, quietLogger())

	r.Order(context.Background(), "700x", models.OrderLogNotify, map[string]string{"trade_status": "TRADE_SUCCESS"})
	if len(store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.entries))
	}
	e := store.entries[0]
	if e.TradeID != "700x" || e.Kind != models.OrderLogNotify || e.LogID == "" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if string(e.Payload) != `{"trade_status":"TRADE_SUCCESS"}` {
		t.Fatalf("unexpected payload %s", e.Payload)
	}
}

func TestOrderSwallowsStoreErrors(t *testing.T) {
	r := NewRecorder(&stubStore{err: errors.New("db down")}, "", time.UTC, quietLogger())
	r.Order(context.Background(), "700x", models.OrderLogSubmit, nil)
}

func TestDayWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(nil, dir, time.UTC, quietLogger())
	r.now = func() time.Time { return time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC) }

	r.Day(CategoryPayNotify, map[string]string{"n": "1"})
	r.Day(CategoryPayNotify, map[string]string{"n": "2"})

	f, err := os.Open(filepath.Join(dir, "PAY_NOTIFY_20240501.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v map[string]any
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("line %d is not json: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}
