package models

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrPaymentNotFound         = errors.New("order payment not found")
	ErrItemNotFound            = errors.New("product order not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrPlanNotFound            = errors.New("product plan not found")
	ErrCategoryNotFound        = errors.New("category not found")
	ErrCartNotFound            = errors.New("cart not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrItemAlreadyReturned     = errors.New("item is already returned")
	ErrOrderNotReturnable      = errors.New("order is not in a returnable state")
	ErrCartNotActive           = errors.New("cart is not active")
	ErrEmptyOrder              = errors.New("order has no items")
	ErrInvalidQuantity         = errors.New("quantity is out of range")
	ErrAddressRequired         = errors.New("address is required for delivery")
	ErrPickupTimeRequired      = errors.New("pickup time is required for pickup")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrEmailTaken              = errors.New("email already registered")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrSlugTaken               = errors.New("product slug already in use")
	ErrProductInUse            = errors.New("product is referenced by orders")
)
