package models

import "time"

// Company groups seat-limited corporate users. The seat invariant
// |Users| <= MaxSeats is enforced by a locked count in the repository, not
// by the model.
type Company struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=2,max=200"`
	AccessCode string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_companies_access_code" json:"access_code" validate:"required,min=4,max=64"`
	MaxSeats   int       `gorm:"not null;default:1" json:"max_seats" validate:"gte=1"`
	Users      []User    `gorm:"foreignKey:CompanyID" json:"users,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
