package entity

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// NormalizeCouponCode canonicalizes user-supplied coupon codes; codes are
// stored uppercase.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DiscountType selects how a coupon's value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a discount rule. UsageLimit of 0 means unlimited. An empty
// UserIDs list with ForAllUsers=false means nobody is eligible; the same
// holds for Categories/ForAllProducts.
type Coupon struct {
	ID             string       `json:"id"`
	Code           string       `json:"code"`
	Description    string       `json:"description,omitempty"`
	DiscountType   DiscountType `json:"discount_type"`
	DiscountValue  float64      `json:"discount_value"`
	MinPurchase    float64      `json:"min_purchase"`
	MaxDiscount    float64      `json:"max_discount,omitempty"`
	ValidFrom      time.Time    `json:"valid_from"`
	ValidUntil     time.Time    `json:"valid_until"`
	UsageLimit     int          `json:"usage_limit,omitempty"`
	TimesUsed      int          `json:"times_used"`
	ForAllUsers    bool         `json:"for_all_users"`
	UserIDs        []string     `json:"user_ids,omitempty"`
	ForAllProducts bool         `json:"for_all_products"`
	Categories     []string     `json:"categories,omitempty"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Validate enforces the structural invariants of a coupon record.
func (c *Coupon) Validate() error {
	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountValue > 100 {
			return fmt.Errorf("%w: percentage discount cannot exceed 100", ErrValidation)
		}
	case DiscountFixed:
		if c.MaxDiscount != 0 {
			return fmt.Errorf("%w: max discount only applies to percentage coupons", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, c.DiscountType)
	}
	if c.DiscountValue < 0 {
		return fmt.Errorf("%w: discount value cannot be negative", ErrValidation)
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		return fmt.Errorf("%w: valid_until must be after valid_from", ErrValidation)
	}
	if c.MinPurchase < 0 {
		return fmt.Errorf("%w: min purchase cannot be negative", ErrValidation)
	}
	return nil
}

// CurrentlyValid reports whether the coupon can be applied at time now:
// active, inside its validity window, and below its usage limit.
func (c *Coupon) CurrentlyValid(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.UsageLimit > 0 && c.TimesUsed >= c.UsageLimit {
		return false
	}
	return true
}

// EligibleForUser reports whether userID may redeem this coupon.
func (c *Coupon) EligibleForUser(userID string) bool {
	if c.ForAllUsers {
		return true
	}
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AppliesToCategory reports whether a product in the given category counts
// toward this coupon's restrictions.
func (c *Coupon) AppliesToCategory(category string) bool {
	if c.ForAllProducts {
		return true
	}
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// Discount computes the discount amount for the given subtotal. Percentage
// coupons are capped by MaxDiscount when set; fixed coupons never exceed
// the subtotal.
func (c *Coupon) Discount(subtotal float64) float64 {
	var d float64
	switch c.DiscountType {
	case DiscountPercentage:
		d = subtotal * c.DiscountValue / 100
		if c.MaxDiscount > 0 {
			d = math.Min(d, c.MaxDiscount)
		}
	case DiscountFixed:
		d = math.Min(c.DiscountValue, subtotal)
	}
	return d
}

// TotalAfterDiscount applies the coupon to a subtotal, clamping at zero.
func (c *Coupon) TotalAfterDiscount(subtotal float64) float64 {
	return math.Max(0, subtotal-c.Discount(subtotal))
}
