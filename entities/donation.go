package entities

import (
	"github.com/google/uuid"
	"time"
)

// Donation records a completed Stripe checkout.
type Donation struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CheckoutId    string    `json:"checkout_id" gorm:"type:varchar(255);uniqueIndex:unique_checkout_id"`
	UserId        string    `json:"user_id" gorm:"type:varchar(255)"`
	PriceId       string    `json:"price_id" gorm:"type:varchar(255)"`
	Amount        int64     `json:"amount" gorm:"type:bigint"`
	Currency      string    `json:"currency" gorm:"type:varchar(10)"`
	CustomerEmail *string   `json:"customer_email" gorm:"type:varchar(255)"`
	CustomerName  *string   `json:"customer_name" gorm:"type:varchar(255)"`
	EventType     string    `json:"event_type" gorm:"type:varchar(100)"`
	StripeCreated time.Time `json:"stripe_created"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Donation) TableName() string {
	return "donations"
}
