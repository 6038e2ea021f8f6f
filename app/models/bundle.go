package models

import "time"

const (
	BillingIntervalMonth = "month"
	BillingIntervalYear  = "year"
)

// Bundle is a recurring-access plan grouping multiple courses. The billing
// interval is an explicit attribute so coupon and proration rules never have
// to guess the cycle length from the title.
type Bundle struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Price           float64   `gorm:"type:decimal(12,2);not null;default:0" json:"price" validate:"gte=0"`
	Published       bool      `gorm:"default:false;index" json:"published"`
	BillingInterval string    `gorm:"type:varchar(16);not null;default:'month'" json:"billing_interval" validate:"oneof=month year"`
	Courses         []Course  `gorm:"many2many:bundle_courses;" json:"courses,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CycleLengthDays maps the billing interval to the proration cycle length.
func (b *Bundle) CycleLengthDays() int {
	if b.BillingInterval == BillingIntervalYear {
		return 365
	}
	return 30
}

// ContainsCourse reports whether the preloaded course set includes the course.
func (b *Bundle) ContainsCourse(courseID uint) bool {
	for _, c := range b.Courses {
		if c.ID == courseID {
			return true
		}
	}
	return false
}
