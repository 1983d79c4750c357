package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vpsBack/internal/models"
	"vpsBack/internal/timeutil"
)

// Per-day file categories.
const (
	CategoryPayNotify          = "PAY_NOTIFY"
	CategoryInAppReceiptVerify = "IN_APP_RECEIPT_VERIFY"
)

// EntryStore persists order log entries.
type EntryStore interface {
	Append(ctx context.Context, entry models.OrderLogEntry) error
}

// Recorder is the audit sink. Failures are logged and never returned: nothing
// downstream depends on an audit write.
type Recorder struct {
	store EntryStore
	dir   string
	loc   *time.Location
	log   logrus.FieldLogger
	now   func() time.Time

	mu sync.Mutex
}

func NewRecorder(store EntryStore, dir string, loc *time.Location, log logrus.FieldLogger) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{store: store, dir: dir, loc: loc, log: log, now: time.Now}
}

// Order appends a submit/notify/return entry for tradeID.
func (r *Recorder) Order(ctx context.Context, tradeID, kind string, payload any) {
	if r == nil || r.store == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		r.log.WithError(err).WithField("trade_no", tradeID).Error("audit: marshal payload")
		return
	}
	entry := models.OrderLogEntry{
		LogID:   uuid.NewString(),
		TradeID: tradeID,
		Kind:    kind,
		Payload: body,
	}
	if err := r.store.Append(ctx, entry); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{"trade_no": tradeID, "kind": kind}).Error("audit: append order log")
	}
}

// Day appends payload as one JSON line to <dir>/<category>_YYYYMMDD.log.
func (r *Recorder) Day(category string, payload any) {
	if r == nil || r.dir == "" {
		return
	}
	now := r.now()
	line, err := json.Marshal(struct {
		Time    string `json:"time"`
		Payload any    `json:"payload"`
	}{Time: now.In(r.loc).Format(time.RFC3339), Payload: payload})
	if err != nil {
		r.log.WithError(err).WithField("category", category).Error("audit: marshal line")
		return
	}
	name := filepath.Join(r.dir, fmt.Sprintf("%s_%s.log", category, timeutil.DayStamp(now, r.loc)))

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.log.WithError(err).Error("audit: create dir")
		return
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		r.log.WithError(err).WithField("file", name).Error("audit: open file")
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		r.log.WithError(err).WithField("file", name).Error("audit: write file")
	}
}
