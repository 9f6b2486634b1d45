package entity

import "time"

// Event represents a domain event published after a successful commit.
type Event interface {
	EventType() string
}

// CartItemAdded is emitted when a user drops an item into their cart.
type CartItemAdded struct {
	UserID    string  `json:"user_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

func (e CartItemAdded) EventType() string { return "CartItemAdded" }

// CartItemRemoved is emitted when a cart line is deleted.
type CartItemRemoved struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (e CartItemRemoved) EventType() string { return "CartItemRemoved" }

// CartItemsUpdated is emitted after a batch quantity update.
type CartItemsUpdated struct {
	UserID  string       `json:"user_id"`
	Updates []ItemUpdate `json:"updates"`
}

func (e CartItemsUpdated) EventType() string { return "CartItemsUpdated" }

// CartCleared is emitted when a cart is emptied and its stock restored.
type CartCleared struct {
	UserID string `json:"user_id"`
}

func (e CartCleared) EventType() string { return "CartCleared" }

// CouponApplied is emitted when a coupon passes validation and is attached.
type CouponApplied struct {
	UserID   string  `json:"user_id"`
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

func (e CouponApplied) EventType() string { return "CouponApplied" }

// CouponRemoved is emitted when a coupon is detached from a cart.
type CouponRemoved struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

func (e CouponRemoved) EventType() string { return "CouponRemoved" }

// OrderPlaced is consumed from the checkout pipeline; the cart service
// records coupon usage and empties the cart when it arrives.
type OrderPlaced struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	CouponCode string    `json:"coupon_code,omitempty"`
	PlacedAt   time.Time `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }
