package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auroracademy/backend/app/models"
)

func refundFixture(purchasedAt time.Time) (*fakeRepo, *fakeGateway) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Role: models.ROLE_STUDENT}
	repo.users[1] = &models.User{ID: 1, Role: models.ROLE_ADMIN}
	bundleID := uint(2)
	repo.purchases = []*models.Purchase{{
		ID:        10,
		UserID:    7,
		BundleID:  &bundleID,
		Amount:    1000,
		Status:    models.PurchaseStatusApproved,
		PaymentID: "pay-10",
		CreatedAt: purchasedAt,
	}}
	repo.nextPurchaseID = 10
	return repo, newFakeGateway()
}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func TestRefundInsideWindow(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-time.Hour))
	repo.subs = []*models.Subscription{{
		ID: 1, UserID: 7, BundleID: 2,
		MercadoPagoID: "mp-sub-1",
		Status:        models.SubscriptionStatusAuthorized,
	}}

	svc := newTestService(repo, gw, fixedClock(now))

	if err := svc.Refund(context.Background(), 10, 7); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if repo.purchases[0].Status != models.PurchaseStatusRefunded {
		t.Fatalf("status = %s, want refunded", repo.purchases[0].Status)
	}
	if len(gw.refunded) != 1 || gw.refunded[0] != "pay-10" {
		t.Fatalf("gateway refunds = %v, want [pay-10]", gw.refunded)
	}
	if repo.subs[0].Status != models.SubscriptionStatusCancelled {
		t.Fatalf("bundle refund must cascade-cancel the subscription")
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "mp-sub-1" {
		t.Fatalf("gateway cancels = %v, want [mp-sub-1]", gw.cancelled)
	}
}

func TestRefundOutsideWindow(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-25 * time.Hour))

	svc := newTestService(repo, gw, fixedClock(now), WithRefundWindow(24*time.Hour))

	err := svc.Refund(context.Background(), 10, 7)
	if !errors.Is(err, ErrWindowExpired) {
		t.Fatalf("expected ErrWindowExpired, got %v", err)
	}
	if repo.purchases[0].Status != models.PurchaseStatusApproved {
		t.Fatalf("purchase must stay approved after a rejected refund")
	}
	if len(gw.refunded) != 0 {
		t.Fatalf("gateway must not be called for an expired refund")
	}
}

func TestRefundForeignPurchase(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-time.Hour))
	repo.users[8] = &models.User{ID: 8, Role: models.ROLE_STUDENT}

	svc := newTestService(repo, gw, fixedClock(now))

	err := svc.Refund(context.Background(), 10, 8)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRefundByAdmin(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-time.Hour))

	svc := newTestService(repo, gw, fixedClock(now))

	if err := svc.Refund(context.Background(), 10, 1); err != nil {
		t.Fatalf("admin refund of someone else's purchase: %v", err)
	}
}

func TestRefundTwiceIsInvalidState(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-time.Hour))

	svc := newTestService(repo, gw, fixedClock(now))

	if err := svc.Refund(context.Background(), 10, 7); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	err := svc.Refund(context.Background(), 10, 7)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second refund, got %v", err)
	}
	if len(gw.refunded) != 1 {
		t.Fatalf("gateway refunded %d times, want 1", len(gw.refunded))
	}
}

func TestRefundUnknownPurchase(t *testing.T) {
	repo, gw := refundFixture(time.Now())
	svc := newTestService(repo, gw)

	err := svc.Refund(context.Background(), 999, 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefundGatewayFailureLeavesPurchaseApproved(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-time.Hour))
	gw.refundErr = errors.New("gateway 500")

	svc := newTestService(repo, gw, fixedClock(now))

	err := svc.Refund(context.Background(), 10, 7)
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if repo.purchases[0].Status != models.PurchaseStatusApproved {
		t.Fatalf("local state must not flip when the gateway refund failed")
	}
}

func TestRefundManualGrantSkipsGateway(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-time.Hour))
	repo.purchases[0].PaymentID = ""
	repo.purchases[0].BundleID = nil

	svc := newTestService(repo, gw, fixedClock(now))

	if err := svc.Refund(context.Background(), 10, 7); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if len(gw.refunded) != 0 {
		t.Fatalf("no charge means no gateway refund, got %v", gw.refunded)
	}
	if repo.purchases[0].Status != models.PurchaseStatusRefunded {
		t.Fatalf("grant must still flip to refunded")
	}
}

func TestRefundLegacySubscriptionCascadeSkipsGatewayCancel(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo, gw := refundFixture(now.Add(-time.Hour))
	repo.subs = []*models.Subscription{{
		ID: 1, UserID: 7, BundleID: 2,
		MercadoPagoID: models.LegacySubscriptionPrefix + "pay-10",
		Status:        models.SubscriptionStatusAuthorized,
	}}

	svc := newTestService(repo, gw, fixedClock(now))

	if err := svc.Refund(context.Background(), 10, 7); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if repo.subs[0].Status != models.SubscriptionStatusCancelled {
		t.Fatalf("legacy subscription must still be cancelled locally")
	}
	if len(gw.cancelled) != 0 {
		t.Fatalf("legacy agreements have nothing to cancel at the gateway, got %v", gw.cancelled)
	}
}
