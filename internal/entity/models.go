package entity

// ProductStatus marks whether a product can be added to carts.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

// Product represents a product in the store. Stock counts units that are
// not reserved by any cart.
type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       float64       `json:"price"`
	ImageURL    string        `json:"image_url"`
	Category    string        `json:"category"`
	Stock       int           `json:"stock"`
	Status      ProductStatus `json:"status"`
}

// Purchasable reports whether the product may currently be added to a cart.
func (p Product) Purchasable() bool {
	return p.Status == ProductActive
}
