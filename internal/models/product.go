package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Product is a purchasable time pack.
type Product struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	// Discount is a percentage multiplier (80 means 80% of price). Zero means no discount.
	Discount    int `json:"discount"`
	GainTime    int `json:"gain_time"`
	PresentTime int `json:"present_time"`
	// AppleProductID binds the product to an App Store product identifier. Optional.
	AppleProductID string `json:"apple_product_id,omitempty"`
}

// PayAmount is price * (discount or 100) / 100, rounded to cents.
func (p Product) PayAmount() decimal.Decimal {
	rate := hundred
	if p.Discount > 0 {
		rate = decimal.NewFromInt(int64(p.Discount))
	}
	return p.Price.Mul(rate).Div(hundred).Round(2)
}

// BenefitSeconds is how much account time a purchase grants.
func (p Product) BenefitSeconds() int {
	return p.GainTime + p.PresentTime
}

// Subject is the short payment title shown by the gateway.
func (p Product) Subject() string {
	if p.Discount > 0 {
		return fmt.Sprintf("%s - %d折", p.Title, p.Discount)
	}
	return p.Title
}

// Body is the long payment description.
func (p Product) Body() string {
	return p.Title + " - " + p.Description
}
