package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a raw role string to the closed set of roles. Anything
// unrecognized falls back to customer, which is also the registration default.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleCustomer, RoleAdmin:
		return Role(s)
	default:
		return RoleCustomer
	}
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus accepts only the three recognized statuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusShipped, OrderStatusCancelled:
		return OrderStatus(s), true
	default:
		return "", false
	}
}

type User struct {
	ID        uuid.UUID `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password_hash"`
	Role      Role      `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Product struct {
	ID          uuid.UUID       `bson:"_id"`
	Name        string          `bson:"name"`
	Description string          `bson:"description,omitempty"`
	Price       decimal.Decimal `bson:"price"`
	Stock       int             `bson:"stock"`
	Image       string          `bson:"image,omitempty"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type Order struct {
	ID        uuid.UUID       `bson:"_id"`
	UserID    uuid.UUID       `bson:"user_id"`
	Items     []OrderItem     `bson:"items"`
	Status    OrderStatus     `bson:"status"`
	Total     decimal.Decimal `bson:"total"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

type OrderItem struct {
	ProductID uuid.UUID `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
}

type OrderEventKind string

const (
	OrderEventCreated       OrderEventKind = "order.created"
	OrderEventStatusChanged OrderEventKind = "order.status_changed"
	OrderEventDeleted       OrderEventKind = "order.deleted"
)

// OrderEvent is the message published to RabbitMQ on order lifecycle changes.
type OrderEvent struct {
	Kind    OrderEventKind `json:"kind"`
	OrderID uuid.UUID      `json:"order_id"`
	UserID  uuid.UUID      `json:"user_id"`
	Status  OrderStatus    `json:"status,omitempty"`
}
