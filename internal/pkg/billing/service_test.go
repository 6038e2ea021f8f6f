package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/auroracademy/backend/app/models"
	"github.com/auroracademy/backend/internal/pkg/mercadopago"
)

func migrationFixture(t *testing.T, currentPrice float64) (*fakeRepo, *fakeGateway) {
	t.Helper()
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7}
	repo.bundles[2] = &models.Bundle{ID: 2, Title: "Mensual", Price: currentPrice, Published: true, BillingInterval: models.BillingIntervalMonth}
	repo.bundles[5] = &models.Bundle{ID: 5, Title: "Pro", Price: 2000, Published: true, BillingInterval: models.BillingIntervalMonth}
	repo.bundles[6] = &models.Bundle{ID: 6, Title: "Basico", Price: 500, Published: true, BillingInterval: models.BillingIntervalMonth}
	repo.subs = []*models.Subscription{{
		ID: 1, UserID: 7, BundleID: 2,
		MercadoPagoID: "mp-sub-1",
		Status:        models.SubscriptionStatusAuthorized,
		CreatedAt:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}}
	return repo, newFakeGateway()
}

func TestUpgradeQuoteCreatesCheckoutWithoutSwapping(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	now := time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)

	svc := newTestService(repo, gw, fixedClock(now))

	offer, err := svc.UpgradeQuote(context.Background(), 7, 5)
	if err != nil {
		t.Fatalf("UpgradeQuote: %v", err)
	}

	// 15 of 30 days remaining: owed (2000-1000)*15/30 = 500.
	if offer.Quote.ChargeAmount != 500 {
		t.Fatalf("ChargeAmount = %v, want 500", offer.Quote.ChargeAmount)
	}
	if offer.PreferenceID != "pref-1" || offer.InitPoint == "" {
		t.Fatalf("offer missing checkout: %+v", offer)
	}
	if repo.subs[0].BundleID != 2 {
		t.Fatalf("quote must not swap the subscription")
	}

	if len(gw.prefRequests) != 1 {
		t.Fatalf("preference requests = %d, want 1", len(gw.prefRequests))
	}
	meta := gw.prefRequests[0].Metadata
	if meta["type"] != "upgrade_fee" {
		t.Fatalf("preference metadata type = %v, want upgrade_fee", meta["type"])
	}
	if meta["new_bundle_id"] != uint(5) {
		t.Fatalf("preference metadata new_bundle_id = %v, want 5", meta["new_bundle_id"])
	}
	item := gw.prefRequests[0].Items[0]
	if item.UnitPrice != 500 || item.CurrencyID != "ARS" {
		t.Fatalf("checkout item = %+v", item)
	}
	if !strings.Contains(item.Title, "Pro") {
		t.Fatalf("item title %q should name the target plan", item.Title)
	}
}

func TestUpgradeQuoteRejectsDowngradeTarget(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	svc := newTestService(repo, gw, fixedClock(time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)))

	_, err := svc.UpgradeQuote(context.Background(), 7, 6)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for a cheaper target, got %v", err)
	}
}

func TestUpgradeQuoteWithoutSubscription(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	repo.subs = nil
	svc := newTestService(repo, gw)

	_, err := svc.UpgradeQuote(context.Background(), 7, 5)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpgradeQuoteUnpublishedTarget(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	repo.bundles[5].Published = false
	svc := newTestService(repo, gw)

	_, err := svc.UpgradeQuote(context.Background(), 7, 5)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for unpublished target, got %v", err)
	}
}

func TestUpgradeQuoteSameBundle(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	svc := newTestService(repo, gw)

	_, err := svc.UpgradeQuote(context.Background(), 7, 2)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for current bundle, got %v", err)
	}
}

func TestDowngradeSwapsImmediately(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	now := time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)
	svc := newTestService(repo, gw, fixedClock(now))

	if err := svc.Downgrade(context.Background(), 7, 6); err != nil {
		t.Fatalf("Downgrade: %v", err)
	}
	if repo.subs[0].BundleID != 6 {
		t.Fatalf("bundle = %d, want 6 right away", repo.subs[0].BundleID)
	}
	if gw.amountUpdates["mp-sub-1"] != 500 {
		t.Fatalf("recurring amount = %v, want 500", gw.amountUpdates["mp-sub-1"])
	}
}

func TestDowngradeBlockedByInstallments(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	repo.subs[0].Installments = 6
	svc := newTestService(repo, gw, fixedClock(time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)))

	err := svc.Downgrade(context.Background(), 7, 6)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState while installments run, got %v", err)
	}
	if repo.subs[0].BundleID != 2 {
		t.Fatalf("blocked downgrade must not swap the bundle")
	}
}

func TestDowngradeGatewayFirst(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	gw.amountErr = errors.New("gateway 500")
	svc := newTestService(repo, gw, fixedClock(time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)))

	err := svc.Downgrade(context.Background(), 7, 6)
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if repo.subs[0].BundleID != 2 {
		t.Fatalf("ledger must not move when the gateway update failed")
	}
}

func TestDowngradeLegacySubscriptionSkipsGateway(t *testing.T) {
	repo, gw := migrationFixture(t, 1000)
	repo.subs[0].MercadoPagoID = models.LegacySubscriptionPrefix + "pay-1"
	svc := newTestService(repo, gw, fixedClock(time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC)))

	if err := svc.Downgrade(context.Background(), 7, 6); err != nil {
		t.Fatalf("Downgrade: %v", err)
	}
	if len(gw.amountUpdates) != 0 {
		t.Fatalf("legacy agreement has no gateway side, got %v", gw.amountUpdates)
	}
	if repo.subs[0].BundleID != 6 {
		t.Fatalf("legacy downgrade must still swap locally")
	}
}

func TestGrantAccessCreatesApprovedPurchase(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeGateway())

	purchase, err := svc.GrantAccess(context.Background(), 7, 3, 0, "")
	if err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}
	if purchase.Status != models.PurchaseStatusApproved {
		t.Fatalf("status = %s, want approved", purchase.Status)
	}
	if purchase.Amount != 0 {
		t.Fatalf("amount = %v, want 0", purchase.Amount)
	}
	if !strings.HasPrefix(purchase.PaymentID, "manual_grant_") {
		t.Fatalf("payment id %q should carry the manual grant marker", purchase.PaymentID)
	}
	if purchase.CourseID == nil || *purchase.CourseID != 3 {
		t.Fatalf("course not set: %+v", purchase)
	}
}

func TestGrantAccessRejectsBothTargets(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeGateway())

	_, err := svc.GrantAccess(context.Background(), 7, 3, 4, "")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestBackfillCouponsLinksLostRedemptions(t *testing.T) {
	repo := newFakeRepo()
	repo.coupons[9] = &models.Coupon{ID: 9, Code: "WELCOME10", Active: true, UsageLimit: intPtr(5), Used: 1}
	repo.purchases = []*models.Purchase{
		{ID: 1, UserID: 7, Status: models.PurchaseStatusApproved, PaymentID: "pay-1"},
		{ID: 2, UserID: 8, Status: models.PurchaseStatusApproved, PaymentID: "pay-2"},
	}
	gw := newFakeGateway()
	gw.payments["pay-1"] = approvedPayment("pay-1", mercadopago.PaymentMetadata{UserID: 7, CourseID: 3, CouponID: 9}, 900)
	gw.payments["pay-2"] = approvedPayment("pay-2", mercadopago.PaymentMetadata{UserID: 8, CourseID: 3}, 1000)

	svc := newTestService(repo, gw)

	report, err := svc.BackfillCoupons(context.Background())
	if err != nil {
		t.Fatalf("BackfillCoupons: %v", err)
	}
	if report.Scanned != 2 {
		t.Fatalf("Scanned = %d, want 2", report.Scanned)
	}
	if report.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", report.Updated)
	}
	if repo.purchases[0].CouponID == nil || *repo.purchases[0].CouponID != 9 {
		t.Fatalf("purchase 1 not linked: %+v", repo.purchases[0])
	}
	if repo.coupons[9].Used != 2 {
		t.Fatalf("coupon used = %d, want 2", repo.coupons[9].Used)
	}
}

func TestSalesReportDedupeFlag(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "a@test.com"}
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.purchases = []*models.Purchase{
		{ID: 1, UserID: 7, ProductLabel: "Curso Go", Amount: 100, Status: models.PurchaseStatusApproved, PaymentID: "pay-1", CreatedAt: base},
		{ID: 2, UserID: 7, ProductLabel: "Curso Go", Amount: 100, Status: models.PurchaseStatusApproved, PaymentID: "pay-2", CreatedAt: base.Add(5 * time.Second)},
	}

	svc := newTestService(repo, newFakeGateway())

	raw, err := svc.SalesReport(context.Background(), false)
	if err != nil {
		t.Fatalf("SalesReport: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("raw sales = %d, want 2", len(raw))
	}
	if !raw[0].CreatedAt.After(raw[1].CreatedAt) {
		t.Fatalf("sales must come back newest first")
	}

	deduped, err := svc.SalesReport(context.Background(), true)
	if err != nil {
		t.Fatalf("SalesReport dedupe: %v", err)
	}
	if len(deduped) != 1 {
		t.Fatalf("deduped sales = %d, want 1", len(deduped))
	}
}
