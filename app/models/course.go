package models

import "time"

type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Price     float64   `gorm:"type:decimal(12,2);not null;default:0" json:"price" validate:"gte=0"`
	Published bool      `gorm:"default:false;index" json:"published"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
