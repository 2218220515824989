package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted form of entities.User.
type User struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name                     string     `gorm:"type:varchar(100);not null"`
	Email                    string     `gorm:"type:varchar(255);not null"`
	PasswordHash             string     `gorm:"type:varchar(255);not null"`
	Role                     string     `gorm:"type:varchar(20);not null;default:'student'"`
	Phone                    *string    `gorm:"type:varchar(32)"`
	WhatsApp                 *string    `gorm:"column:whatsapp;type:varchar(32)"`
	Telegram                 *string    `gorm:"type:varchar(64)"`
	IsEmailVerified          bool       `gorm:"not null;default:false"`
	EmailVerificationToken   *string    `gorm:"type:varchar(64)"`
	EmailVerificationExpires *time.Time `gorm:"type:timestamp"`
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (User) TableName() string {
	return "users"
}
