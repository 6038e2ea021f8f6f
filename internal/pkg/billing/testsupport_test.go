package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/auroracademy/backend/app/models"
	"github.com/auroracademy/backend/internal/pkg/mercadopago"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository with the same not-found and
// idempotency semantics as the GORM implementation. The mutex stands in for
// the database transaction, so purchase creation and the guarded coupon
// redeem stay atomic under concurrent callers.
type fakeRepo struct {
	mu sync.Mutex

	users   map[uint]*models.User
	bundles map[uint]*models.Bundle
	coupons map[uint]*models.Coupon

	purchases []*models.Purchase
	subs      []*models.Subscription

	nextPurchaseID uint
	nextSubID      uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:   map[uint]*models.User{},
		bundles: map[uint]*models.Bundle{},
		coupons: map[uint]*models.Coupon{},
	}
}

func (f *fakeRepo) GetUser(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeRepo) GetBundle(id uint) (*models.Bundle, error) {
	b, ok := f.bundles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return b, nil
}

func (f *fakeRepo) GetCouponByCode(code string) (*models.Coupon, error) {
	normalized := models.NormalizeCouponCode(code)
	for _, c := range f.coupons {
		if c.Code == normalized {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetPurchase(id uint) (*models.Purchase, error) {
	for _, p := range f.purchases {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreatePurchaseIfNotExists(p *models.Purchase, couponID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p.PaymentID != "" {
		for _, existing := range f.purchases {
			if existing.PaymentID == p.PaymentID {
				return false, nil
			}
		}
	}
	f.nextPurchaseID++
	p.ID = f.nextPurchaseID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	f.purchases = append(f.purchases, p)

	if couponID != 0 {
		f.redeem(p, couponID)
	}
	return true, nil
}

func (f *fakeRepo) redeem(p *models.Purchase, couponID uint) bool {
	c, ok := f.coupons[couponID]
	if !ok || !c.Active || c.IsExhausted() {
		return false
	}
	c.Used++
	id := couponID
	p.CouponID = &id
	return true
}

func (f *fakeRepo) UpdatePurchaseStatus(id uint, status string) error {
	for _, p := range f.purchases {
		if p.ID == id {
			p.Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) AttachCoupon(purchaseID, couponID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.purchases {
		if p.ID == purchaseID {
			return f.redeem(p, couponID), nil
		}
	}
	return false, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListApprovedPurchasesWithoutCoupon(limit int) ([]models.Purchase, error) {
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.Status == models.PurchaseStatusApproved && p.CouponID == nil {
			out = append(out, *p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListApprovedBundlePurchases() ([]models.Purchase, error) {
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.Status == models.PurchaseStatusApproved && p.BundleID != nil {
			cp := *p
			if u, ok := f.users[p.UserID]; ok {
				cp.User = *u
			}
			if b, ok := f.bundles[*p.BundleID]; ok {
				cp.Bundle = b
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListSales() ([]models.Purchase, error) {
	out := make([]models.Purchase, 0, len(f.purchases))
	for _, p := range f.purchases {
		cp := *p
		if u, ok := f.users[p.UserID]; ok {
			cp.User = *u
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeRepo) GetSubscriptionByMercadoPagoID(mercadoPagoID string) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.MercadoPagoID == mercadoPagoID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindActiveSubscription(userID, bundleID uint) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID && s.BundleID == bundleID && models.IsActiveSubscriptionStatus(s.Status) {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindAuthorizedSubscription(userID, bundleID uint) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID && s.BundleID == bundleID && s.IsAuthorized() {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindAuthorizedSubscriptionByUser(userID uint) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID && s.IsAuthorized() {
			if b, ok := f.bundles[s.BundleID]; ok {
				s.Bundle = *b
			}
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListAuthorizedSubscriptionsExcluding(userID uint, exceptMercadoPagoID string) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID && s.IsAuthorized() && s.MercadoPagoID != exceptMercadoPagoID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateSubscription(sub *models.Subscription) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeRepo) UpsertSubscriptionByMercadoPagoID(sub *models.Subscription) (*models.Subscription, error) {
	for _, existing := range f.subs {
		if existing.MercadoPagoID == sub.MercadoPagoID {
			existing.Status = sub.Status
			existing.Installments = sub.Installments
			return existing, nil
		}
	}
	if err := f.CreateSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (f *fakeRepo) UpdateSubscriptionStatus(id uint, status string) error {
	for _, s := range f.subs {
		if s.ID == id {
			s.Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateSubscriptionBundle(id, bundleID uint) error {
	for _, s := range f.subs {
		if s.ID == id {
			s.BundleID = bundleID
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeGateway records calls and serves canned payments and agreements.
type fakeGateway struct {
	payments     map[string]*mercadopago.Payment
	preapprovals map[string]*mercadopago.PreApproval

	paymentErr error
	refundErr  error
	cancelErr  error
	amountErr  error

	refundStatus string

	refunded      []string
	cancelled     []string
	amountUpdates map[string]float64

	preference   *mercadopago.Preference
	prefRequests []*mercadopago.PreferenceRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments:      map[string]*mercadopago.Payment{},
		preapprovals:  map[string]*mercadopago.PreApproval{},
		refundStatus:  "approved",
		amountUpdates: map[string]float64{},
		preference:    &mercadopago.Preference{ID: "pref-1", InitPoint: "https://mp.test/init/pref-1"},
	}
}

func (g *fakeGateway) GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error) {
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return p, nil
}

func (g *fakeGateway) RefundPayment(ctx context.Context, paymentID string) (*mercadopago.Refund, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunded = append(g.refunded, paymentID)
	return &mercadopago.Refund{Status: g.refundStatus}, nil
}

func (g *fakeGateway) GetPreApproval(ctx context.Context, id string) (*mercadopago.PreApproval, error) {
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	pa, ok := g.preapprovals[id]
	if !ok {
		return nil, errors.New("preapproval not found")
	}
	return pa, nil
}

func (g *fakeGateway) UpdatePreApprovalAmount(ctx context.Context, id string, amount float64) error {
	if g.amountErr != nil {
		return g.amountErr
	}
	g.amountUpdates[id] = amount
	return nil
}

func (g *fakeGateway) CancelPreApproval(ctx context.Context, id string) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, id)
	return nil
}

func (g *fakeGateway) CreatePreference(ctx context.Context, pref *mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	g.prefRequests = append(g.prefRequests, pref)
	return g.preference, nil
}

func newTestService(repo *fakeRepo, gateway *fakeGateway, opts ...Option) *Service {
	return NewService(repo, gateway, opts...)
}
