package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
	"github.com/opencartlab/cart-service/internal/service"
)

// Handler handles HTTP requests for the application. Request bodies are
// decoded and validated exactly once here; the services receive typed
// commands.
type Handler struct {
	cartSvc    *service.CartService
	couponSvc  *service.CouponService
	productSvc *service.ProductService
	validate   *validator.Validate
}

func NewHandler(cartSvc *service.CartService, couponSvc *service.CouponService, productSvc *service.ProductService) *Handler {
	return &Handler{
		cartSvc:    cartSvc,
		couponSvc:  couponSvc,
		productSvc: productSvc,
		validate:   validator.New(),
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(EnableCORS)
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.handleListProducts)
		r.Get("/products/{id}", h.handleGetProduct)
		r.Get("/coupons/{code}", h.handleLookupCoupon)

		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", h.handleGetCart)
			r.Delete("/", h.handleClearCart)
			r.Post("/items", h.handleAddItem)
			r.Patch("/items", h.handleUpdateItems)
			r.Delete("/items/{productID}", h.handleRemoveItem)
			r.Post("/coupon", h.handleApplyCoupon)
			r.Delete("/coupon", h.handleRemoveCoupon)
		})

		r.Route("/admin/coupons", func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/", h.handleCreateCoupon)
			r.Get("/", h.handleListCoupons)
			r.Get("/{id}", h.handleGetCoupon)
			r.Patch("/{id}", h.handleUpdateCoupon)
			r.Delete("/{id}", h.handleDeleteCoupon)
		})
	})

	return r
}

// decode unmarshals the body into cmd and runs struct validation.
func (h *Handler) decode(r *http.Request, cmd any) error {
	if err := json.NewDecoder(r.Body).Decode(cmd); err != nil {
		return entity.ErrValidation
	}
	if err := h.validate.Struct(cmd); err != nil {
		return entity.ErrValidation
	}
	return nil
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productSvc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.productSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// couponLookup is the public redeemability summary of a coupon; internal
// targeting fields are not echoed.
type couponLookup struct {
	Code          string  `json:"code"`
	Description   string  `json:"description,omitempty"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	MinPurchase   float64 `json:"min_purchase"`
	Valid         bool    `json:"valid"`
}

func (h *Handler) handleLookupCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.couponSvc.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, couponLookup{
		Code:          coupon.Code,
		Description:   coupon.Description,
		DiscountType:  string(coupon.DiscountType),
		DiscountValue: coupon.DiscountValue,
		MinPurchase:   coupon.MinPurchase,
		Valid:         coupon.CurrentlyValid(time.Now()),
	})
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cartSvc.GetCart(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var cmd entity.AddItem
	if err := h.decode(r, &cmd); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.cartSvc.AddItem(r.Context(), UserID(r.Context()), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUpdateItems(w http.ResponseWriter, r *http.Request) {
	var cmd entity.UpdateItems
	if err := h.decode(r, &cmd); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.cartSvc.UpdateItems(r.Context(), UserID(r.Context()), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.cartSvc.RemoveItem(r.Context(), UserID(r.Context()), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cartSvc.ClearCart(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var cmd entity.ApplyCoupon
	if err := h.decode(r, &cmd); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.cartSvc.ApplyCoupon(r.Context(), UserID(r.Context()), cmd.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	view, err := h.cartSvc.RemoveCoupon(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var cmd entity.CreateCoupon
	if err := h.decode(r, &cmd); err != nil {
		writeError(w, err)
		return
	}
	coupon, err := h.couponSvc.Create(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, coupon)
}

func (h *Handler) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	var f repository.CouponFilter
	if v := r.URL.Query().Get("active"); v != "" {
		b := v == "true"
		f.Active = &b
	}
	if v := r.URL.Query().Get("valid"); v != "" {
		b := v == "true"
		f.Valid = &b
	}
	coupons, err := h.couponSvc.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupons)
}

func (h *Handler) handleGetCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.couponSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

func (h *Handler) handleUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var cmd entity.UpdateCoupon
	if err := h.decode(r, &cmd); err != nil {
		writeError(w, err)
		return
	}
	coupon, err := h.couponSvc.Update(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

func (h *Handler) handleDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.couponSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps the shared error taxonomy onto HTTP status codes.
// Unexpected errors are logged and returned as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrUnauthenticated):
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, entity.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrQuantityLimit),
		errors.Is(err, entity.ErrCouponInvalid):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, entity.ErrCouponIneligible):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, entity.ErrInsufficientStock),
		errors.Is(err, entity.ErrConflict):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Unhandled error", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
