package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/auroracademy/backend/app/models"
	"github.com/auroracademy/backend/internal/pkg/mercadopago"
	"gorm.io/gorm"
)

// IngestResult tells the transport layer how a notification was handled.
// A result without an error is a final outcome and must be acknowledged; an
// error alongside the result means the notification was not fully applied
// and the handler should answer non-2xx so the gateway redelivers.
type IngestResult string

const (
	ResultCreated          IngestResult = "created"
	ResultAlreadyProcessed IngestResult = "already_processed"
	ResultUpdated          IngestResult = "updated"
	ResultIgnored          IngestResult = "ignored"
	ResultInvalid          IngestResult = "invalid"
)

// Notification topics delivered by the gateway.
const (
	TopicPayment                 = "payment"
	TopicPreApproval             = "preapproval"
	TopicSubscriptionPreApproval = "subscription_preapproval"
)

// Ingest routes a gateway notification to the matching handler. Unknown
// topics are ignored without error.
func (s *Service) Ingest(ctx context.Context, topic, externalID string) (IngestResult, error) {
	switch strings.TrimSpace(topic) {
	case TopicPayment:
		res, _, err := s.IngestPayment(ctx, topic, externalID)
		return res, err
	case TopicPreApproval, TopicSubscriptionPreApproval:
		return s.IngestPreApproval(ctx, topic, externalID)
	default:
		return ResultIgnored, nil
	}
}

// IngestPayment materializes an approved charge into a purchase row. The
// notification is untrusted and only carries an id; the authoritative state
// is always re-fetched from the gateway. Creation is idempotent on the
// payment id, so concurrent deliveries resolve to exactly one row.
func (s *Service) IngestPayment(ctx context.Context, topic, externalID string) (IngestResult, *models.Purchase, error) {
	if strings.TrimSpace(topic) != TopicPayment {
		return ResultIgnored, nil, nil
	}
	if strings.TrimSpace(externalID) == "" {
		log.Print("[WEBHOOK] payment notification without id")
		return ResultInvalid, nil, nil
	}

	payment, err := s.gateway.GetPayment(ctx, externalID)
	if err != nil {
		return ResultIgnored, nil, fmt.Errorf("%w: fetch payment %s: %v", ErrExternalService, externalID, err)
	}

	if payment.Status != mercadopago.PaymentStatusApproved {
		// Failed and pending attempts are never persisted.
		return ResultIgnored, nil, nil
	}

	meta := payment.Metadata
	if meta.IsUpgradeFee() {
		return s.ingestUpgradeFee(ctx, payment)
	}

	if err := meta.Validate(); err != nil {
		log.Printf("[WEBHOOK] payment %s has invalid metadata: %v", externalID, err)
		return ResultInvalid, nil, nil
	}

	purchase := &models.Purchase{
		UserID:    meta.UserID,
		Amount:    payment.TransactionAmount,
		Status:    models.PurchaseStatusApproved,
		PaymentID: payment.ID,
	}
	if meta.CourseID != 0 {
		purchase.CourseID = &meta.CourseID
	}
	if meta.BundleID != 0 {
		purchase.BundleID = &meta.BundleID
	}

	created, err := s.repo.CreatePurchaseIfNotExists(purchase, meta.CouponID)
	if err != nil {
		return ResultIgnored, nil, err
	}
	if !created {
		log.Printf("[WEBHOOK] payment %s already processed", payment.ID)
		return ResultAlreadyProcessed, nil, nil
	}

	log.Printf("[WEBHOOK] purchase saved for user %d (payment %s)", meta.UserID, payment.ID)
	return ResultCreated, purchase, nil
}

// ingestUpgradeFee settles a plan-upgrade proration charge: record the fee
// as a purchase, then swap the subscription to the new bundle and push the
// full new recurring amount to the gateway. The swap happens here, once the
// charge is confirmed, never at quote time.
func (s *Service) ingestUpgradeFee(ctx context.Context, payment *mercadopago.Payment) (IngestResult, *models.Purchase, error) {
	meta := payment.Metadata
	if meta.UserID == 0 {
		log.Printf("[WEBHOOK] upgrade fee %s missing user_id", payment.ID)
		return ResultInvalid, nil, nil
	}

	purchase := &models.Purchase{
		UserID:       meta.UserID,
		BundleID:     &meta.NewBundleID,
		ProductLabel: "Plan Upgrade",
		Amount:       payment.TransactionAmount,
		Status:       models.PurchaseStatusApproved,
		PaymentID:    payment.ID,
	}

	created, err := s.repo.CreatePurchaseIfNotExists(purchase, 0)
	if err != nil {
		return ResultIgnored, nil, err
	}
	if !created {
		return ResultAlreadyProcessed, nil, nil
	}

	sub, err := s.repo.FindAuthorizedSubscriptionByUser(meta.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[WEBHOOK] upgrade fee %s paid but user %d has no authorized subscription", payment.ID, meta.UserID)
			return ResultCreated, purchase, nil
		}
		return ResultCreated, purchase, err
	}

	if err := s.repo.UpdateSubscriptionBundle(sub.ID, meta.NewBundleID); err != nil {
		return ResultCreated, purchase, err
	}
	if meta.NewAmount > 0 && !sub.IsLegacy() {
		if err := s.gateway.UpdatePreApprovalAmount(ctx, sub.MercadoPagoID, meta.NewAmount); err != nil {
			// The local swap already happened; the recurring amount is
			// re-driven on the next preapproval sync.
			log.Printf("[WEBHOOK] failed to update recurring amount for %s: %v", sub.MercadoPagoID, err)
		}
	}

	log.Printf("[WEBHOOK] upgrade confirmed for user %d: subscription %d -> bundle %d", meta.UserID, sub.ID, meta.NewBundleID)
	return ResultCreated, purchase, nil
}

// IngestPreApproval syncs a recurring-agreement notification into the
// subscription table. The upsert self-heals rows the checkout flow failed
// to persist, using the agreement's external_reference as the hint. On
// authorization the user's other authorized agreements are cancelled, which
// covers the plan-switch case.
func (s *Service) IngestPreApproval(ctx context.Context, topic, externalID string) (IngestResult, error) {
	switch strings.TrimSpace(topic) {
	case TopicPreApproval, TopicSubscriptionPreApproval:
	default:
		return ResultIgnored, nil
	}
	if strings.TrimSpace(externalID) == "" {
		log.Print("[WEBHOOK] preapproval notification without id")
		return ResultInvalid, nil
	}

	pa, err := s.gateway.GetPreApproval(ctx, externalID)
	if err != nil {
		return ResultIgnored, fmt.Errorf("%w: fetch preapproval %s: %v", ErrExternalService, externalID, err)
	}

	status := strings.ToLower(strings.TrimSpace(pa.Status))
	if status == "" {
		status = models.SubscriptionStatusPending
	}

	sub := &models.Subscription{
		MercadoPagoID: pa.ID,
		Status:        status,
		Installments:  pa.AutoRecurring.Installments,
	}

	existing, err := s.repo.GetSubscriptionByMercadoPagoID(pa.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ResultIgnored, err
	}

	result := ResultUpdated
	if existing == nil {
		ext, perr := mercadopago.ParseExternalReference(pa.ExternalReference)
		if perr != nil {
			log.Printf("[WEBHOOK] preapproval %s: %v", pa.ID, perr)
		}
		if ext == nil || ext.UserID == 0 || ext.BundleID == 0 {
			log.Printf("[WEBHOOK] preapproval %s unknown locally and carries no usable external_reference", pa.ID)
			return ResultInvalid, nil
		}
		sub.UserID = ext.UserID
		sub.BundleID = ext.BundleID
		result = ResultCreated
	} else {
		sub.UserID = existing.UserID
		sub.BundleID = existing.BundleID
	}

	stored, err := s.repo.UpsertSubscriptionByMercadoPagoID(sub)
	if err != nil {
		return ResultIgnored, err
	}
	log.Printf("[WEBHOOK] subscription %s -> %s", stored.MercadoPagoID, stored.Status)

	if status == models.SubscriptionStatusAuthorized {
		s.cancelSupersededSubscriptions(ctx, stored)
	}
	return result, nil
}

// cancelSupersededSubscriptions cancels every other authorized agreement of
// the user, at the gateway and in the ledger. Best effort: a gateway
// failure is logged and the local record still flips, so access reflects
// the single agreement the user just activated.
func (s *Service) cancelSupersededSubscriptions(ctx context.Context, current *models.Subscription) {
	previous, err := s.repo.ListAuthorizedSubscriptionsExcluding(current.UserID, current.MercadoPagoID)
	if err != nil {
		log.Printf("[WEBHOOK] listing superseded subscriptions for user %d: %v", current.UserID, err)
		return
	}

	for _, old := range previous {
		if !old.IsLegacy() {
			if err := s.gateway.CancelPreApproval(ctx, old.MercadoPagoID); err != nil {
				log.Printf("[WEBHOOK] gateway cancel of %s failed: %v", old.MercadoPagoID, err)
			}
		}
		if err := s.repo.UpdateSubscriptionStatus(old.ID, models.SubscriptionStatusCancelled); err != nil {
			log.Printf("[WEBHOOK] cancelling superseded subscription %d: %v", old.ID, err)
			continue
		}
		log.Printf("[WEBHOOK] auto-cancelled superseded subscription %s", old.MercadoPagoID)
	}
}
