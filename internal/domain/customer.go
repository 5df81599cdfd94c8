// Package domain holds the entities shared by the USSD and SMS conversation engines.
package domain

import "time"

// Customer is a person identified by phone number. Records are created lazily on first contact.
type Customer struct {
	ID           int64     `db:"id" json:"id"`
	Phone        string    `db:"phone_number" json:"phone_number"`
	CityCode     string    `db:"city_code" json:"city_code"`
	Location     string    `db:"location" json:"location"`
	SessionToken string    `db:"session_data" json:"current_session_data"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NewCustomer returns an unsaved customer for phone.
func NewCustomer(phone string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
