package entity

import "time"

// Commands are the typed, already-validated inputs to the services. The
// delivery layer decodes and validates request bodies exactly once and
// hands these down; `validate` tags are checked there with validator/v10.

// AddItem puts quantity units of a product into the caller's cart.
type AddItem struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
}

// ItemUpdate sets the absolute quantity of one existing cart line.
// Quantity 0 removes the line.
type ItemUpdate struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"min=0,max=100"`
}

// UpdateItems applies a batch of line updates as one atomic unit.
type UpdateItems struct {
	Items []ItemUpdate `json:"items" validate:"required,min=1,dive"`
}

// ApplyCoupon attaches a coupon code to the caller's cart.
type ApplyCoupon struct {
	Code string `json:"code" validate:"required,max=64"`
}

// CreateCoupon is the admin command to register a new coupon.
type CreateCoupon struct {
	Code           string    `json:"code" validate:"required,max=64"`
	Description    string    `json:"description" validate:"max=200"`
	DiscountType   string    `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue  float64   `json:"discount_value" validate:"required,gt=0"`
	MinPurchase    float64   `json:"min_purchase" validate:"min=0"`
	MaxDiscount    float64   `json:"max_discount" validate:"min=0"`
	ValidFrom      time.Time `json:"valid_from"`
	ValidUntil     time.Time `json:"valid_until" validate:"required"`
	UsageLimit     int       `json:"usage_limit" validate:"min=0"`
	ForAllUsers    bool      `json:"for_all_users"`
	UserIDs        []string  `json:"user_ids"`
	ForAllProducts bool      `json:"for_all_products"`
	Categories     []string  `json:"categories"`
}

// UpdateCoupon carries the mutable coupon fields; nil pointers leave the
// stored value unchanged.
type UpdateCoupon struct {
	Description   *string    `json:"description" validate:"omitempty,max=200"`
	DiscountValue *float64   `json:"discount_value" validate:"omitempty,gt=0"`
	MinPurchase   *float64   `json:"min_purchase" validate:"omitempty,min=0"`
	MaxDiscount   *float64   `json:"max_discount" validate:"omitempty,min=0"`
	ValidUntil    *time.Time `json:"valid_until"`
	Active        *bool      `json:"active"`
	UsageLimit    *int       `json:"usage_limit" validate:"omitempty,min=0"`
}
