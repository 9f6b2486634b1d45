package entity

import "errors"

// Sentinel errors shared across the service and delivery layers. Wrap them
// with fmt.Errorf("...: %w", err) to add context; callers match with
// errors.Is.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrQuantityLimit     = errors.New("per-product quantity limit exceeded")
	ErrCouponInvalid     = errors.New("coupon invalid")
	ErrCouponIneligible  = errors.New("coupon not eligible")
	ErrConflict          = errors.New("concurrent modification")
)
