package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserDevice represents a user's device for FCM push notifications
type UserDevice struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	FCMToken     string    `json:"fcm_token" gorm:"size:500;not null;uniqueIndex"`
	DeviceType   string    `json:"device_type" gorm:"size:20;default:'unknown'"` // android, ios, web
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (d *UserDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// PushSubscription is a browser Web Push subscription
type PushSubscription struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Endpoint  string    `json:"endpoint" gorm:"size:1000;not null;uniqueIndex"`
	P256dh    string    `json:"p256dh" gorm:"size:255;not null"`
	Auth      string    `json:"auth" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
