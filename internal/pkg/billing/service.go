package billing

import (
	"time"

	"github.com/auroracademy/backend/internal/pkg/env"
	"github.com/auroracademy/backend/internal/pkg/mercadopago"
	"gorm.io/gorm"
)

// DefaultRefundWindow is the canonical refund-eligibility policy, measured
// from Purchase.CreatedAt. It is the single source of truth for every entry
// point; override via REFUND_WINDOW_HOURS.
const DefaultRefundWindow = 24 * time.Hour

// Service is the entitlement & billing reconciliation engine. All state
// lives in the ledger behind Repository; the gateway is an injected
// collaborator so tests can supply doubles.
type Service struct {
	repo         Repository
	gateway      mercadopago.API
	refundWindow time.Duration

	// now is swappable for deterministic tests.
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRefundWindow overrides the refund-eligibility window.
func WithRefundWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.refundWindow = window
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a billing service from an injected repository and
// gateway client.
func NewService(repo Repository, gateway mercadopago.API, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		gateway:      gateway,
		refundWindow: refundWindowFromEnv(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway mercadopago.API, opts ...Option) *Service {
	return NewService(NewRepository(db), gateway, opts...)
}

func refundWindowFromEnv() time.Duration {
	hours := env.GetEnvInt("REFUND_WINDOW_HOURS", 0)
	if hours <= 0 {
		return DefaultRefundWindow
	}
	return time.Duration(hours) * time.Hour
}
