package billing

import (
	"context"
	"testing"
	"time"

	"github.com/auroracademy/backend/app/models"
)

func TestReconcileCreatesLegacySubscriptions(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "a@test.com"}
	repo.bundles[2] = &models.Bundle{ID: 2, Title: "Anual"}
	bundleID := uint(2)
	courseID := uint(3)
	purchasedAt := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	repo.purchases = []*models.Purchase{
		{ID: 1, UserID: 7, BundleID: &bundleID, Status: models.PurchaseStatusApproved, PaymentID: "pay-1", CreatedAt: purchasedAt},
		// Course purchases are out of scope for reconciliation.
		{ID: 2, UserID: 7, CourseID: &courseID, Status: models.PurchaseStatusApproved, PaymentID: "pay-2", CreatedAt: purchasedAt},
		// Refunded bundle purchases earn no subscription.
		{ID: 3, UserID: 7, BundleID: &bundleID, Status: models.PurchaseStatusRefunded, PaymentID: "pay-3", CreatedAt: purchasedAt},
	}

	svc := newTestService(repo, newFakeGateway())

	report, err := svc.ReconcileLegacySubscriptions(context.Background())
	if err != nil {
		t.Fatalf("ReconcileLegacySubscriptions: %v", err)
	}
	if report.FixedCount != 1 {
		t.Fatalf("FixedCount = %d, want 1", report.FixedCount)
	}
	if len(repo.subs) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(repo.subs))
	}

	sub := repo.subs[0]
	if sub.MercadoPagoID != models.LegacySubscriptionPrefix+"pay-1" {
		t.Fatalf("agreement id = %q, want LEGACY-pay-1", sub.MercadoPagoID)
	}
	if !sub.IsLegacy() {
		t.Fatalf("synthesized subscription must flag as legacy")
	}
	if sub.Status != models.SubscriptionStatusAuthorized {
		t.Fatalf("status = %s, want authorized", sub.Status)
	}
	if !sub.CreatedAt.Equal(purchasedAt) {
		t.Fatalf("cycle anchor = %s, want the purchase time %s", sub.CreatedAt, purchasedAt)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "a@test.com"}
	repo.bundles[2] = &models.Bundle{ID: 2, Title: "Anual"}
	bundleID := uint(2)
	repo.purchases = []*models.Purchase{
		{ID: 1, UserID: 7, BundleID: &bundleID, Status: models.PurchaseStatusApproved, PaymentID: "pay-1", CreatedAt: time.Now()},
	}

	svc := newTestService(repo, newFakeGateway())

	if _, err := svc.ReconcileLegacySubscriptions(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := svc.ReconcileLegacySubscriptions(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.FixedCount != 0 {
		t.Fatalf("second run fixed %d, want 0", report.FixedCount)
	}
	if len(repo.subs) != 1 {
		t.Fatalf("second run duplicated the subscription")
	}
}

func TestReconcileSkipsPausedButActiveSubscriptions(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7}
	repo.bundles[2] = &models.Bundle{ID: 2}
	bundleID := uint(2)
	repo.purchases = []*models.Purchase{
		{ID: 1, UserID: 7, BundleID: &bundleID, Status: models.PurchaseStatusApproved, PaymentID: "pay-1", CreatedAt: time.Now()},
	}
	repo.subs = []*models.Subscription{
		{ID: 1, UserID: 7, BundleID: 2, MercadoPagoID: "mp-1", Status: models.SubscriptionStatusPaused},
	}

	svc := newTestService(repo, newFakeGateway())

	report, err := svc.ReconcileLegacySubscriptions(context.Background())
	if err != nil {
		t.Fatalf("ReconcileLegacySubscriptions: %v", err)
	}
	if report.FixedCount != 0 {
		t.Fatalf("paused is still active; fixed %d, want 0", report.FixedCount)
	}
}

func TestReconcileCreatesAfterCancellation(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7}
	repo.bundles[2] = &models.Bundle{ID: 2}
	bundleID := uint(2)
	repo.purchases = []*models.Purchase{
		{ID: 1, UserID: 7, BundleID: &bundleID, Status: models.PurchaseStatusApproved, PaymentID: "pay-1", CreatedAt: time.Now()},
	}
	repo.subs = []*models.Subscription{
		{ID: 1, UserID: 7, BundleID: 2, MercadoPagoID: "mp-1", Status: models.SubscriptionStatusCancelled},
	}

	svc := newTestService(repo, newFakeGateway())

	report, err := svc.ReconcileLegacySubscriptions(context.Background())
	if err != nil {
		t.Fatalf("ReconcileLegacySubscriptions: %v", err)
	}
	if report.FixedCount != 1 {
		t.Fatalf("cancelled rows do not cover the purchase; fixed %d, want 1", report.FixedCount)
	}
}
