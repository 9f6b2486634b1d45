package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/messaging"
	"github.com/opencartlab/cart-service/internal/repository"
	"github.com/opencartlab/cart-service/internal/txn"
)

// TopicCartEvents carries the cart domain events, keyed by user ID.
const TopicCartEvents = "cart.events"

// CartService is the cart engine: it mutates the one-cart-per-user state,
// keeps product stock in lockstep with cart changes, and validates coupons
// against cart contents. Every mutation runs through the transaction
// coordinator so the cart write and its stock adjustments commit together.
type CartService struct {
	coord     *txn.Coordinator
	stores    repository.Stores
	publisher messaging.Publisher
}

func NewCartService(coord *txn.Coordinator, stores repository.Stores, publisher messaging.Publisher) *CartService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &CartService{coord: coord, stores: stores, publisher: publisher}
}

// GetCart returns the caller's cart joined with current product records.
// A user without a cart gets an empty view; nothing is created.
func (s *CartService) GetCart(ctx context.Context, userID string) (*entity.CartView, error) {
	cart, err := s.stores.Carts.FindByUser(ctx, userID)
	if errors.Is(err, entity.ErrNotFound) {
		return emptyView(), nil
	}
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, s.stores, cart)
}

// AddItem puts quantity units of a product into the cart, creating the
// cart lazily and merging into an existing line. The cart write and the
// stock decrement commit as one unit.
func (s *CartService) AddItem(ctx context.Context, userID string, cmd entity.AddItem) (*entity.CartView, error) {
	var price float64
	err := s.coord.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		product, err := st.Products.FindByID(ctx, cmd.ProductID)
		if err != nil {
			return err
		}
		if !product.Purchasable() {
			return fmt.Errorf("product %s is inactive: %w", product.ID, entity.ErrNotFound)
		}
		// Stock already excludes units reserved by carts, so the remaining
		// stock check is the same whether the line exists or not.
		if product.Stock < cmd.Quantity {
			return fmt.Errorf("product %s has %d left: %w", product.ID, product.Stock, entity.ErrInsufficientStock)
		}

		cart, err := st.Carts.FindByUser(ctx, userID)
		if errors.Is(err, entity.ErrNotFound) {
			cart = &entity.Cart{ID: uuid.NewString(), UserID: userID}
		} else if err != nil {
			return err
		}

		if i := cart.FindItem(cmd.ProductID); i >= 0 {
			next := cart.Items[i].Quantity + cmd.Quantity
			if next > entity.MaxQuantityPerProduct {
				return fmt.Errorf("product %s quantity %d: %w", product.ID, next, entity.ErrQuantityLimit)
			}
			cart.Items[i].Quantity = next
		} else {
			cart.Items = append(cart.Items, entity.CartItem{
				ProductID:       product.ID,
				Quantity:        cmd.Quantity,
				PriceAtAddition: product.Price,
			})
		}

		if err := st.Products.AdjustStock(ctx, product.ID, -cmd.Quantity); err != nil {
			return err
		}
		price = product.Price
		return st.Carts.Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, userID, entity.CartItemAdded{
		UserID:    userID,
		ProductID: cmd.ProductID,
		Quantity:  cmd.Quantity,
		Price:     price,
	})
	return s.GetCart(ctx, userID)
}

// RemoveItem drops the line for productID and restores its full quantity
// to the product's stock.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*entity.CartView, error) {
	var removed int
	err := s.coord.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		cart, err := st.Carts.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		i := cart.FindItem(productID)
		if i < 0 {
			return fmt.Errorf("product %s not in cart: %w", productID, entity.ErrNotFound)
		}
		removed = cart.Items[i].Quantity
		cart.RemoveItem(i)

		if err := st.Products.AdjustStock(ctx, productID, removed); err != nil {
			return err
		}
		return st.Carts.Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, userID, entity.CartItemRemoved{UserID: userID, ProductID: productID, Quantity: removed})
	return s.GetCart(ctx, userID)
}

// UpdateItems applies a batch of absolute quantity updates all-or-nothing.
// Quantity zero removes the line; otherwise stock is adjusted by the delta
// between the new and old quantities.
func (s *CartService) UpdateItems(ctx context.Context, userID string, cmd entity.UpdateItems) (*entity.CartView, error) {
	err := s.coord.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		cart, err := st.Carts.FindByUser(ctx, userID)
		if err != nil {
			return err
		}

		// Validate every entry before touching anything.
		deltas := make(map[string]int, len(cmd.Items))
		for _, u := range cmd.Items {
			if u.Quantity < 0 || u.Quantity > entity.MaxQuantityPerProduct {
				return fmt.Errorf("quantity %d for %s out of range: %w", u.Quantity, u.ProductID, entity.ErrValidation)
			}
			if _, dup := deltas[u.ProductID]; dup {
				return fmt.Errorf("duplicate update for %s: %w", u.ProductID, entity.ErrValidation)
			}
			i := cart.FindItem(u.ProductID)
			if i < 0 {
				return fmt.Errorf("product %s not in cart: %w", u.ProductID, entity.ErrValidation)
			}
			deltas[u.ProductID] = u.Quantity - cart.Items[i].Quantity
		}

		ids := make([]string, 0, len(deltas))
		for id := range deltas {
			ids = append(ids, id)
		}
		products, err := st.Products.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for id, delta := range deltas {
			p, ok := products[id]
			if !ok {
				return fmt.Errorf("product %s: %w", id, entity.ErrNotFound)
			}
			if delta > 0 && p.Stock < delta {
				return fmt.Errorf("product %s has %d left: %w", id, p.Stock, entity.ErrInsufficientStock)
			}
		}

		// All entries validated; now apply lines and stock in lockstep.
		for _, u := range cmd.Items {
			i := cart.FindItem(u.ProductID)
			if u.Quantity == 0 {
				cart.RemoveItem(i)
			} else {
				cart.Items[i].Quantity = u.Quantity
			}
		}
		for id, delta := range deltas {
			if delta == 0 {
				continue
			}
			if err := st.Products.AdjustStock(ctx, id, -delta); err != nil {
				return err
			}
		}
		return st.Carts.Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, userID, entity.CartItemsUpdated{UserID: userID, Updates: cmd.Items})
	return s.GetCart(ctx, userID)
}

// ClearCart restores every line's quantity to its product's stock and
// empties the cart. Clearing a missing cart is a no-op.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*entity.CartView, error) {
	cleared := false
	err := s.coord.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		cart, err := st.Carts.FindByUser(ctx, userID)
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, it := range cart.Items {
			if err := st.Products.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		cart.Items = nil
		cleared = true
		return st.Carts.Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	if cleared {
		s.emit(ctx, userID, entity.CartCleared{UserID: userID})
	}
	return s.GetCart(ctx, userID)
}

// ApplyCoupon validates a coupon code against the cart contents and, on
// success, attaches it. Validation failures leave the cart untouched.
func (s *CartService) ApplyCoupon(ctx context.Context, userID, code string) (*entity.CartView, error) {
	code = entity.NormalizeCouponCode(code)
	var discount float64
	err := s.coord.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		cart, err := st.Carts.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		coupon, err := st.Coupons.FindByCode(ctx, code)
		if err != nil {
			return err
		}

		now := time.Now()
		if !coupon.CurrentlyValid(now) {
			return fmt.Errorf("coupon %s is inactive, out of its validity window, or exhausted: %w", code, entity.ErrCouponInvalid)
		}
		if !coupon.EligibleForUser(userID) {
			return fmt.Errorf("coupon %s is not available for this account: %w", code, entity.ErrCouponIneligible)
		}
		subtotal := cart.Subtotal()
		if subtotal < coupon.MinPurchase {
			return fmt.Errorf("minimum purchase of %.2f not met: %w", coupon.MinPurchase, entity.ErrCouponIneligible)
		}
		if !coupon.ForAllProducts {
			ids := make([]string, len(cart.Items))
			for i, it := range cart.Items {
				ids[i] = it.ProductID
			}
			products, err := st.Products.FindByIDs(ctx, ids)
			if err != nil {
				return err
			}
			eligible := false
			for _, p := range products {
				if coupon.AppliesToCategory(p.Category) {
					eligible = true
					break
				}
			}
			if !eligible {
				return fmt.Errorf("coupon %s does not apply to any cart item: %w", code, entity.ErrCouponIneligible)
			}
		}

		cart.CouponCode = coupon.Code
		discount = coupon.Discount(subtotal)
		return st.Carts.Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, userID, entity.CouponApplied{UserID: userID, Code: code, Discount: discount})
	return s.GetCart(ctx, userID)
}

// RemoveCoupon detaches the coupon from the cart; removing when none is
// attached is a no-op.
func (s *CartService) RemoveCoupon(ctx context.Context, userID string) (*entity.CartView, error) {
	var removed string
	err := s.coord.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		cart, err := st.Carts.FindByUser(ctx, userID)
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cart.CouponCode == "" {
			return nil
		}
		removed = cart.CouponCode
		cart.CouponCode = ""
		return st.Carts.Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	if removed != "" {
		s.emit(ctx, userID, entity.CouponRemoved{UserID: userID, Code: removed})
	}
	return s.GetCart(ctx, userID)
}

// HandleOrderPlaced consumes a checkout completion: the reserved stock has
// been sold, so the cart empties without restoring stock, the coupon is
// detached, and its usage is recorded.
func (s *CartService) HandleOrderPlaced(ctx context.Context, event *entity.OrderPlaced) error {
	slog.Info("Order placed, settling cart", "order_id", event.OrderID, "user_id", event.UserID)

	return s.coord.Run(ctx, func(ctx context.Context, st repository.Stores) error {
		if event.CouponCode != "" {
			if err := st.Coupons.IncrementUsage(ctx, event.CouponCode); err != nil {
				return err
			}
		}
		cart, err := st.Carts.FindByUser(ctx, event.UserID)
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cart.Items = nil
		cart.CouponCode = ""
		return st.Carts.Save(ctx, cart)
	})
}

func (s *CartService) buildView(ctx context.Context, st repository.Stores, cart *entity.Cart) (*entity.CartView, error) {
	ids := make([]string, len(cart.Items))
	for i, it := range cart.Items {
		ids[i] = it.ProductID
	}
	products, err := st.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := emptyView()
	for _, it := range cart.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.Purchasable() {
			// Deactivated products disappear from the view; the stored
			// cart keeps the line until an explicit remove or clear.
			continue
		}
		line := float64(it.Quantity) * it.PriceAtAddition
		view.Items = append(view.Items, entity.CartItemView{
			ProductID:       it.ProductID,
			Name:            p.Name,
			Quantity:        it.Quantity,
			PriceAtAddition: it.PriceAtAddition,
			CurrentPrice:    p.Price,
			Stock:           p.Stock,
			LineTotal:       line,
		})
		view.Subtotal += line
		view.ItemCount += it.Quantity
	}
	view.Total = view.Subtotal

	if cart.CouponCode != "" {
		coupon, err := st.Coupons.FindByCode(ctx, cart.CouponCode)
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			return nil, err
		}
		if err == nil && coupon.CurrentlyValid(time.Now()) {
			view.Discount = coupon.Discount(view.Subtotal)
			view.Total = coupon.TotalAfterDiscount(view.Subtotal)
			view.Coupon = &entity.CouponView{
				Code:          coupon.Code,
				DiscountType:  string(coupon.DiscountType),
				DiscountValue: coupon.DiscountValue,
			}
		}
	}
	return view, nil
}

func (s *CartService) emit(ctx context.Context, key string, event entity.Event) {
	if err := s.publisher.PublishEvent(ctx, TopicCartEvents, key, event); err != nil {
		slog.Error("Failed to publish event", "type", event.EventType(), "err", err)
	}
}

func emptyView() *entity.CartView {
	return &entity.CartView{Items: []entity.CartItemView{}}
}
