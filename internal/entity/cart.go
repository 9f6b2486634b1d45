package entity

import "time"

// MaxQuantityPerProduct caps how many units of one product a single cart
// line may hold.
const MaxQuantityPerProduct = 100

// CartItem is one line in a cart. PriceAtAddition snapshots the product
// price at the moment the line was first created; later catalog price
// changes do not touch existing lines.
type CartItem struct {
	ProductID       string  `json:"product_id"`
	Quantity        int     `json:"quantity"`
	PriceAtAddition float64 `json:"price_at_addition"`
}

// Cart holds the single cart of one user. Version backs optimistic
// concurrency: repositories reject a save whose Version does not match the
// stored row.
type Cart struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Items      []CartItem `json:"items"`
	CouponCode string     `json:"coupon_code,omitempty"`
	Version    int        `json:"version"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FindItem returns the index of the line for productID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveItem deletes the line at index i, preserving order.
func (c *Cart) RemoveItem(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Subtotal is the pre-discount sum of quantity times snapshotted price.
func (c *Cart) Subtotal() float64 {
	var sum float64
	for _, it := range c.Items {
		sum += float64(it.Quantity) * it.PriceAtAddition
	}
	return sum
}

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// CartItemView is a cart line joined with its current product record.
type CartItemView struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	PriceAtAddition float64 `json:"price_at_addition"`
	CurrentPrice    float64 `json:"current_price"`
	Stock           int     `json:"stock"`
	LineTotal       float64 `json:"line_total"`
}

// CouponView is the subset of a coupon echoed back on cart responses.
type CouponView struct {
	Code          string  `json:"code"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
}

// CartView is the response shape for every cart operation. Lines whose
// product has been deactivated are filtered out; the stored cart is left
// untouched.
type CartView struct {
	Items     []CartItemView `json:"items"`
	Subtotal  float64        `json:"subtotal"`
	ItemCount int            `json:"item_count"`
	Discount  float64        `json:"discount,omitempty"`
	Total     float64        `json:"total"`
	Coupon    *CouponView    `json:"coupon,omitempty"`
}
