package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"vpsBack/internal/models"
	"vpsBack/internal/pay"
	"vpsBack/internal/repositories"
	"vpsBack/internal/tradeno"
)

type memLedger struct {
	mu         sync.Mutex
	orders     map[string]*models.Order
	settleKeys map[string]string
	nextID     int64
}

func newMemLedger() *memLedger {
	return &memLedger{orders: map[string]*models.Order{}, settleKeys: map[string]string{}}
}

func (l *memLedger) CreateOrder(_ context.Context, tradeID string, userID, productID int, amount decimal.Decimal) (models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[tradeID]; ok {
		return models.Order{}, models.ErrDuplicateTradeID
	}
	l.nextID++
	o := &models.Order{ID: l.nextID, TradeID: tradeID, UserID: userID, ProductID: productID, Amount: amount, Status: models.OrderStatusPending, CreatedAt: time.Now()}
	l.orders[tradeID] = o
	return *o, nil
}

func (l *memLedger) FindByTradeID(_ context.Context, tradeID string) (models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[tradeID]
	if !ok {
		return models.Order{}, models.ErrOrderNotFound
	}
	return *o, nil
}

func (l *memLedger) FindSettledByExternalID(_ context.Context, externalID string, rail models.RailTag) (models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tradeID, ok := l.settleKeys[repositories.SettleKey(rail, externalID)]
	if !ok {
		return models.Order{}, models.ErrOrderNotFound
	}
	return *l.orders[tradeID], nil
}

func (l *memLedger) Settle(ctx context.Context, req repositories.SettleRequest, grant repositories.GrantFunc) (repositories.SettleResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[req.TradeID]
	if !ok {
		return repositories.SettleResult{}, models.ErrOrderNotFound
	}
	if o.Status != models.OrderStatusPending {
		return repositories.SettleResult{Status: o.Status}, nil
	}
	key := ""
	if req.To == models.OrderStatusSuccess && req.ExternalID != "" {
		key = repositories.SettleKey(req.Rail, req.ExternalID)
		if owner, taken := l.settleKeys[key]; taken {
			return repositories.SettleResult{}, &models.ConflictError{TradeID: owner}
		}
	}
	if grant != nil {
		if err := grant(ctx, nil); err != nil {
			return repositories.SettleResult{}, err
		}
	}
	o.Status = req.To
	o.ExternalTradeID = req.ExternalID
	if key != "" {
		l.settleKeys[key] = o.TradeID
	}
	return repositories.SettleResult{Applied: true, Status: req.To}, nil
}

func (l *memLedger) ListByUser(_ context.Context, userID, limit int) ([]models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Order
	for _, o := range l.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) count(status models.OrderStatus) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, o := range l.orders {
		if o.Status == status {
			n++
		}
	}
	return n
}

type memCatalog map[int]models.Product

func (c memCatalog) GetByID(_ context.Context, id int) (models.Product, error) {
	p, ok := c[id]
	if !ok {
		return models.Product{}, models.ErrProductNotFound
	}
	return p, nil
}

func (c memCatalog) List(context.Context) ([]models.Product, error) {
	out := make([]models.Product, 0, len(c))
	for _, p := range c {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAccounts struct {
	mu      sync.Mutex
	credits map[int]int
	grants  int
}

func newMemAccounts(userIDs ...int) *memAccounts {
	a := &memAccounts{credits: map[int]int{}}
	for _, id := range userIDs {
		a.credits[id] = 0
	}
	return a
}

func (a *memAccounts) CreditTime(_ context.Context, _ *sql.Tx, userID int, seconds int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.credits[userID]; !ok {
		return models.ErrUserNotFound
	}
	a.credits[userID] += seconds
	a.grants++
	return nil
}

func (a *memAccounts) GetUserByID(_ context.Context, id int) (models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.credits[id]; !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return models.User{ID: id}, nil
}

func (a *memAccounts) credited(userID int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.credits[userID]
}

type stubReceipts struct {
	res models.VerificationResult
	err error
}

func (s stubReceipts) Verify(context.Context, string, string, models.ReceiptEnvironment) (models.VerificationResult, error) {
	return s.res, s.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentSettled
}

func (p *recordingPublisher) PublishSettled(_ context.Context, ev models.PaymentSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

var (
	keyOnce sync.Once
	gwKey   *rsa.PrivateKey
)

func gatewayKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		gwKey = k
	})
	return gwKey
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const (
	testUser    = 7
	testProduct = 1
	testAppID   = "2021000"
)

type harness struct {
	svc       *PaymentService
	ledger    *memLedger
	accounts  *memAccounts
	publisher *recordingPublisher
	key       *rsa.PrivateKey
}

func newHarness(t *testing.T, receipts ReceiptVerifier) *harness {
	t.Helper()
	key := gatewayKey(t)
	gw, err := pay.NewGateway(pay.GatewayConfig{
		AppID:      testAppID,
		GatewayURL: "https://openapi.example.com/gateway.do",
		NotifyURL:  "https://api.example.com/pay/notify",
		ReturnURL:  "https://api.example.com/pay/return",
		PrivateKey: key,
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	ledger := newMemLedger()
	catalog := memCatalog{
		testProduct: {ID: testProduct, Title: "Monthly", Description: "30 days", Price: decimal.NewFromInt(100), Discount: 80, GainTime: 2592000, PresentTime: 86400},
		2:           {ID: 2, Title: "Weekly", Price: decimal.RequireFromString("9.99"), GainTime: 604800, AppleProductID: "vip.week"},
	}
	accounts := newMemAccounts(testUser)
	publisher := &recordingPublisher{}
	log := quietLogger()

	if receipts == nil {
		receipts = stubReceipts{}
	}
	svc := &PaymentService{
		Orders:   ledger,
		Products: catalog,
		Users:    accounts,
		IDs:      tradeno.NewGenerator(time.UTC),
		Gateway:  NewGatewayRail(gw, pay.NewCallbackVerifier(testAppID, &key.PublicKey, pay.SignTypeRSA2), ""),
		InApp:    NewInAppRail(receipts),
		Engine:   NewReconcileEngine(ledger, catalog, accounts, nil, publisher, log),
		Log:      log,
	}
	return &harness{svc: svc, ledger: ledger, accounts: accounts, publisher: publisher, key: key}
}

// notify builds a gateway notification signed with key.
func notify(t *testing.T, key *rsa.PrivateKey, tradeID, externalID, status string) map[string]string {
	t.Helper()
	params := map[string]string{
		"app_id":       testAppID,
		"out_trade_no": tradeID,
		"trade_no":     externalID,
		"trade_status": status,
		"total_amount": "80.00",
	}
	sig, err := pay.Sign(pay.Content(params, "sign", "sign_type"), key, pay.SignTypeRSA2)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	params["sign"] = sig
	params["sign_type"] = pay.SignTypeRSA2
	return params
}
