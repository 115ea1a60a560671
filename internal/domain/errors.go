package domain

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotInCart     = errors.New("product is not in the cart")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrNothingToRedo     = errors.New("nothing to redo")
	ErrOrderNotFound     = errors.New("order not found")
	ErrAddressNotFound   = errors.New("address not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrUnauthorized      = errors.New("not allowed to access this resource")
	ErrPaymentGateway    = errors.New("payment gateway error")
	ErrInvalidState      = errors.New("invalid state for this operation")
)
