package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrProductNotFound  = errors.New("product not found")
	ErrProductNameTaken = errors.New("product name already in use")
	ErrInvalidPrice     = errors.New("price must be zero or positive")
	ErrInvalidStock     = errors.New("stock must be zero or positive")

	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrOrderNotPending   = errors.New("only pending orders can be deleted")
	ErrInvalidStatus     = errors.New("invalid order status")

	ErrNoItems           = errors.New("order must contain at least one item")
	ErrMissingProductRef = errors.New("every item needs a product reference")
	ErrInvalidQuantity   = errors.New("item quantity must be greater than zero")
)

// UnknownProductError is returned when an order line references a product
// that does not exist in the catalog.
type UnknownProductError struct {
	ProductID uuid.UUID
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// InsufficientStockError is returned when a product cannot cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.Name)
}
