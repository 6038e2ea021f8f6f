package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/auroracademy/backend/app/models"
	"github.com/google/uuid"
)

const backfillBatchSize = 100

// BackfillReport summarizes a coupon backfill run.
type BackfillReport struct {
	Scanned int      `json:"scanned"`
	Updated int      `json:"updated"`
	Logs    []string `json:"logs"`
}

// BackfillCoupons re-fetches gateway metadata for approved purchases that
// have no coupon link and transactionally attaches the coupon, incrementing
// its usage counter. Recovers redemptions that were recorded at the gateway
// but lost locally. Per-payment failures are collected, not fatal.
func (s *Service) BackfillCoupons(ctx context.Context) (*BackfillReport, error) {
	purchases, err := s.repo.ListApprovedPurchasesWithoutCoupon(backfillBatchSize)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{Scanned: len(purchases), Logs: []string{}}
	for _, purchase := range purchases {
		if purchase.PaymentID == "" {
			continue
		}

		payment, err := s.gateway.GetPayment(ctx, purchase.PaymentID)
		if err != nil {
			report.Logs = append(report.Logs, fmt.Sprintf("payment %s: %v", purchase.PaymentID, err))
			continue
		}
		if payment.Metadata.CouponID == 0 {
			continue
		}

		attached, err := s.repo.AttachCoupon(purchase.ID, payment.Metadata.CouponID)
		if err != nil {
			report.Logs = append(report.Logs, fmt.Sprintf("purchase %d: %v", purchase.ID, err))
			continue
		}
		if !attached {
			report.Logs = append(report.Logs, fmt.Sprintf("purchase %d: coupon %d inactive or exhausted", purchase.ID, payment.Metadata.CouponID))
			continue
		}

		report.Updated++
		report.Logs = append(report.Logs, fmt.Sprintf("linked purchase %d to coupon %d", purchase.ID, payment.Metadata.CouponID))

		// Small pause between gateway lookups to stay under rate limits.
		time.Sleep(100 * time.Millisecond)
	}
	return report, nil
}

// GrantAccess creates an approved purchase by admin fiat, without a gateway
// charge. Exactly one of courseID/bundleID may be set; with neither, the
// grant is recorded under the free-text label. The synthetic payment id
// keeps the idempotency and refund paths uniform.
func (s *Service) GrantAccess(ctx context.Context, userID uint, courseID, bundleID uint, label string) (*models.Purchase, error) {
	_ = ctx
	if courseID != 0 && bundleID != 0 {
		return nil, fmt.Errorf("%w: grant cannot target both a course and a bundle", ErrInvalidState)
	}
	if courseID == 0 && bundleID == 0 && label == "" {
		label = "Manual Grant"
	}

	purchase := &models.Purchase{
		UserID:       userID,
		ProductLabel: label,
		Amount:       0,
		Status:       models.PurchaseStatusApproved,
		PaymentID:    "manual_grant_" + uuid.NewString(),
	}
	if courseID != 0 {
		purchase.CourseID = &courseID
	}
	if bundleID != 0 {
		purchase.BundleID = &bundleID
	}

	if _, err := s.repo.CreatePurchaseIfNotExists(purchase, 0); err != nil {
		return nil, err
	}
	log.Printf("[ADMIN] manual access granted to user %d (purchase %d)", userID, purchase.ID)
	return purchase, nil
}

// SalesReport lists purchases newest-first, optionally collapsed through
// the duplicate-charge window for clean revenue numbers.
func (s *Service) SalesReport(ctx context.Context, dedupe bool) ([]models.Purchase, error) {
	_ = ctx
	sales, err := s.repo.ListSales()
	if err != nil {
		return nil, err
	}
	if dedupe {
		sales = DedupeSales(sales, DefaultDuplicateWindow)
	}
	return sales, nil
}
