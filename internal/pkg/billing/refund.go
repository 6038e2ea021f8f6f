package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/auroracademy/backend/app/models"
	"gorm.io/gorm"
)

// Refund reverses an approved purchase. Preconditions are checked in order:
// purchase exists, requester owns it or is an admin, status is approved,
// and the purchase is inside the refund window measured from CreatedAt.
// After the gateway refund succeeds the purchase flips to refunded even if
// the subscription cascade fails partially; the cascade is best effort and
// re-drivable.
func (s *Service) Refund(ctx context.Context, purchaseID, requesterID uint) error {
	purchase, err := s.repo.GetPurchase(purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: purchase %d", ErrNotFound, purchaseID)
		}
		return err
	}

	requester, err := s.repo.GetUser(requesterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: requester %d", ErrNotFound, requesterID)
		}
		return err
	}
	if purchase.UserID != requester.ID && !requester.IsAdmin() {
		return fmt.Errorf("%w: purchase %d belongs to another user", ErrForbidden, purchaseID)
	}

	if purchase.Status != models.PurchaseStatusApproved {
		return fmt.Errorf("%w: purchase %d is %s", ErrInvalidState, purchaseID, purchase.Status)
	}

	if s.now().Sub(purchase.CreatedAt) > s.refundWindow {
		return fmt.Errorf("%w: purchase %d is older than %s", ErrWindowExpired, purchaseID, s.refundWindow)
	}

	if purchase.PaymentID != "" {
		refund, err := s.gateway.RefundPayment(ctx, purchase.PaymentID)
		if err != nil {
			return fmt.Errorf("%w: refund payment %s: %v", ErrExternalService, purchase.PaymentID, err)
		}
		if !refund.Approved() {
			return fmt.Errorf("%w: gateway rejected refund of %s (status %s)", ErrExternalService, purchase.PaymentID, refund.Status)
		}
	} else {
		// Manual zero-cost grants carry no charge to reverse.
		log.Printf("[REFUND] purchase %d has no payment id, skipping gateway refund", purchaseID)
	}

	if err := s.repo.UpdatePurchaseStatus(purchaseID, models.PurchaseStatusRefunded); err != nil {
		return err
	}
	log.Printf("[REFUND] purchase %d refunded for user %d", purchaseID, purchase.UserID)

	if purchase.BundleID != nil {
		s.cascadeCancelSubscription(ctx, purchase.UserID, *purchase.BundleID)
	}
	return nil
}

// cascadeCancelSubscription cancels the user's authorized subscription for
// the refunded bundle, at the gateway and in the ledger. Failures are
// logged, never fatal to the refund itself.
func (s *Service) cascadeCancelSubscription(ctx context.Context, userID, bundleID uint) {
	sub, err := s.repo.FindAuthorizedSubscription(userID, bundleID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[REFUND] looking up subscription for user %d bundle %d: %v", userID, bundleID, err)
		}
		return
	}

	if !sub.IsLegacy() {
		if err := s.gateway.CancelPreApproval(ctx, sub.MercadoPagoID); err != nil {
			log.Printf("[REFUND] gateway cancel of %s failed: %v", sub.MercadoPagoID, err)
		}
	}
	if err := s.repo.UpdateSubscriptionStatus(sub.ID, models.SubscriptionStatusCancelled); err != nil {
		log.Printf("[REFUND] cancelling subscription %d: %v", sub.ID, err)
		return
	}
	log.Printf("[REFUND] cascade-cancelled subscription %s", sub.MercadoPagoID)
}
