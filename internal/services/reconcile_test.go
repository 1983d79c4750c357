package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"vpsBack/internal/models"
)

type stubMarker struct {
	settled map[string]bool
}

func (m *stubMarker) MarkSettled(_ context.Context, tradeID string) error {
	m.settled[tradeID] = true
	return nil
}

func (m *stubMarker) IsSettled(_ context.Context, tradeID string) (bool, error) {
	return m.settled[tradeID], nil
}

func newEngine(ledger *memLedger, catalog memCatalog, accounts *memAccounts, marker SettledMarker) *ReconcileEngine {
	return NewReconcileEngine(ledger, catalog, accounts, marker, nil, quietLogger())
}

func seed(t *testing.T, ledger *memLedger, tradeID string, productID int) {
	t.Helper()
	if _, err := ledger.CreateOrder(context.Background(), tradeID, testUser, productID, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("seed %s: %v", tradeID, err)
	}
}

func TestReconcileConflictAcrossOrders(t *testing.T) {
	ledger := newMemLedger()
	catalog := memCatalog{1: {ID: 1, GainTime: 100}}
	accounts := newMemAccounts(testUser)
	engine := newEngine(ledger, catalog, accounts, nil)
	rail := NewInAppRail(nil)

	seed(t, ledger, "900a", 1)
	seed(t, ledger, "900b", 1)

	if _, err := engine.Reconcile(context.Background(), rail, Confirmation{TradeID: "900a", ExternalTradeID: "T1", Status: "0"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := engine.Reconcile(context.Background(), rail, Confirmation{TradeID: "900b", ExternalTradeID: "T1", Status: "0"})
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) || conflict.TradeID != "900a" {
		t.Fatalf("expected conflict with 900a, got %v", err)
	}
	if accounts.credited(testUser) != 100 {
		t.Fatalf("conflict changed credit to %d", accounts.credited(testUser))
	}
	if ledger.count(models.OrderStatusSuccess) != 1 {
		t.Fatal("only one order may reach SUCCESS per external id")
	}
}

func TestReconcileMissingProductIsLoud(t *testing.T) {
	ledger := newMemLedger()
	accounts := newMemAccounts(testUser)
	engine := newEngine(ledger, memCatalog{}, accounts, nil)
	seed(t, ledger, "700a", 42)

	_, err := engine.Reconcile(context.Background(), NewGatewayRail(nil, nil, ""), Confirmation{TradeID: "700a", ExternalTradeID: "X", Status: "TRADE_SUCCESS"})
	if !errors.Is(err, models.ErrProductMissing) {
		t.Fatalf("expected ErrProductMissing, got %v", err)
	}
	o, _ := ledger.FindByTradeID(context.Background(), "700a")
	if o.Status != models.OrderStatusPending || accounts.grants != 0 {
		t.Fatalf("missing product must leave order pending, got %s", o.Status)
	}
}

func TestReconcileUnknownOrder(t *testing.T) {
	engine := newEngine(newMemLedger(), memCatalog{}, newMemAccounts(), nil)
	_, err := engine.Reconcile(context.Background(), NewGatewayRail(nil, nil, ""), Confirmation{TradeID: "700zzz", Status: "TRADE_SUCCESS"})
	if !errors.Is(err, models.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestReconcileGrantFailureRollsBack(t *testing.T) {
	ledger := newMemLedger()
	accounts := newMemAccounts()
	engine := newEngine(ledger, memCatalog{1: {ID: 1, GainTime: 100}}, accounts, nil)
	seed(t, ledger, "700a", 1)

	_, err := engine.Reconcile(context.Background(), NewGatewayRail(nil, nil, ""), Confirmation{TradeID: "700a", ExternalTradeID: "X", Status: "TRADE_SUCCESS"})
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	o, _ := ledger.FindByTradeID(context.Background(), "700a")
	if o.Status != models.OrderStatusPending {
		t.Fatalf("failed grant must not settle, got %s", o.Status)
	}
}

func TestReconcileMarksSettled(t *testing.T) {
	ledger := newMemLedger()
	accounts := newMemAccounts(testUser)
	marker := &stubMarker{settled: map[string]bool{}}
	engine := newEngine(ledger, memCatalog{1: {ID: 1, GainTime: 100}}, accounts, marker)
	seed(t, ledger, "700a", 1)
	rail := NewGatewayRail(nil, nil, "")
	c := Confirmation{TradeID: "700a", ExternalTradeID: "X", Status: "TRADE_SUCCESS"}

	if _, err := engine.Reconcile(context.Background(), rail, c); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !marker.settled["700a"] {
		t.Fatal("settled marker not written")
	}
	out, err := engine.Reconcile(context.Background(), rail, c)
	if err != nil || out.Granted || out.Status != models.OrderStatusSuccess {
		t.Fatalf("replay through marker: %+v %v", out, err)
	}
	if accounts.grants != 1 {
		t.Fatalf("expected one grant, got %d", accounts.grants)
	}
}

func TestInAppRailPaid(t *testing.T) {
	rail := NewInAppRail(nil)
	if !rail.Paid("0") || rail.Paid("21003") || rail.Paid("") {
		t.Fatal("in-app paid iff status is 0")
	}
}
