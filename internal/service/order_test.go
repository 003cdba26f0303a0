package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendago/tienda-api/internal/dto"
	"github.com/tiendago/tienda-api/internal/model"
)

type mockOrderRepo struct {
	orders map[uuid.UUID]*model.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, order *model.Order) error {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	return m.orders[id], nil
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (m *mockOrderRepo) ListAll(_ context.Context) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range m.orders {
		orders = append(orders, *o)
	}
	return orders, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OrderStatus) error {
	if o, ok := m.orders[id]; ok {
		o.Status = status
		o.UpdatedAt = time.Now()
	}
	return nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.orders, id)
	return nil
}

func (m *mockOrderRepo) EnsureIndexes(_ context.Context) error { return nil }

type mockTxRunner struct{}

func (mockTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newOrderService(orders *mockOrderRepo, products *mockProductRepo) *OrderService {
	return NewOrderService(orders, products, newMockUserRepo(), mockTxRunner{}, nil, nil)
}

func seedProduct(repo *mockProductRepo, name string, price float64, stock int) *model.Product {
	p := &model.Product{Name: name, Price: decimal.NewFromFloat(price), Stock: stock}
	_ = repo.Create(context.Background(), p)
	return p
}

func TestOrderService_PlaceOrder(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Teclado", 20, 10)
	svc := newOrderService(orders, products)
	userID := uuid.New()

	resp, err := svc.PlaceOrder(context.Background(), userID, dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, resp.Status)
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(40)), "total = %s", resp.Total)
	assert.Equal(t, 8, products.products[p.ID].Stock)
	assert.Equal(t, userID, resp.UserID)
	require.Len(t, resp.Items, 1)
	require.NotNil(t, resp.Items[0].Product)
	assert.Equal(t, "Teclado", resp.Items[0].Product.Name)
	assert.Len(t, orders.orders, 1)
}

func TestOrderService_PlaceOrder_NoItems(t *testing.T) {
	svc := newOrderService(newMockOrderRepo(), newMockProductRepo())
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{})
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestOrderService_PlaceOrder_InvalidQuantity(t *testing.T) {
	products := newMockProductRepo()
	p := seedProduct(products, "Mouse", 5, 10)
	svc := newOrderService(newMockOrderRepo(), products)

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 10, products.products[p.ID].Stock)
}

func TestOrderService_PlaceOrder_MissingProductRef(t *testing.T) {
	svc := newOrderService(newMockOrderRepo(), newMockProductRepo())
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrMissingProductRef)
}

func TestOrderService_PlaceOrder_UnknownProduct(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	svc := newOrderService(orders, products)
	missing := uuid.New()

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: missing, Quantity: 1}},
	})

	var unknown *UnknownProductError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, missing, unknown.ProductID)
	assert.Empty(t, orders.orders)
}

func TestOrderService_PlaceOrder_InsufficientStock(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Monitor", 100, 1)
	svc := newOrderService(orders, products)

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 2}},
	})

	var outOfStock *InsufficientStockError
	require.ErrorAs(t, err, &outOfStock)
	assert.Equal(t, "Monitor", outOfStock.Name)
	assert.Equal(t, 1, products.products[p.ID].Stock)
	assert.Empty(t, orders.orders)
}

// A multi-line order where one line fails must leave every product's stock
// untouched.
func TestOrderService_PlaceOrder_AllOrNothing(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	ok := seedProduct(products, "Cable", 3, 50)
	scarce := seedProduct(products, "GPU", 900, 1)
	svc := newOrderService(orders, products)

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{
			{ProductID: ok.ID, Quantity: 10},
			{ProductID: scarce.ID, Quantity: 2},
		},
	})

	var outOfStock *InsufficientStockError
	require.ErrorAs(t, err, &outOfStock)
	assert.Equal(t, 50, products.products[ok.ID].Stock)
	assert.Equal(t, 1, products.products[scarce.ID].Stock)
	assert.Empty(t, orders.orders)
}

func TestOrderService_PlaceOrder_TotalAcrossLines(t *testing.T) {
	products := newMockProductRepo()
	a := seedProduct(products, "A", 9.99, 10)
	b := seedProduct(products, "B", 0.5, 10)
	svc := newOrderService(newMockOrderRepo(), products)

	resp, err := svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{
			{ProductID: a.ID, Quantity: 3},
			{ProductID: b.ID, Quantity: 4},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Total.Equal(decimal.NewFromFloat(31.97)), "total = %s", resp.Total)
}

func TestOrderService_ChangeStatus_InvalidStatus(t *testing.T) {
	svc := newOrderService(newMockOrderRepo(), newMockProductRepo())
	_, err := svc.ChangeStatus(context.Background(), uuid.New(), "delivered")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrderService_ChangeStatus_NotFound(t *testing.T) {
	svc := newOrderService(newMockOrderRepo(), newMockProductRepo())
	_, err := svc.ChangeStatus(context.Background(), uuid.New(), "shipped")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_ChangeStatus_CancelRestocksOnce(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Silla", 45, 2)
	svc := newOrderService(orders, products)
	userID := uuid.New()

	order := &model.Order{
		UserID: userID,
		Items:  []model.OrderItem{{ProductID: p.ID, Quantity: 3}},
		Status: model.OrderStatusPending,
		Total:  decimal.NewFromInt(135),
	}
	require.NoError(t, orders.Create(context.Background(), order))

	resp, err := svc.ChangeStatus(context.Background(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, resp.Status)
	assert.Equal(t, 5, products.products[p.ID].Stock)

	// Cancelling an already-cancelled order must not restock again.
	resp, err = svc.ChangeStatus(context.Background(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, resp.Status)
	assert.Equal(t, 5, products.products[p.ID].Stock)
}

func TestOrderService_ChangeStatus_ShipThenCancel(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Mesa", 80, 4)
	svc := newOrderService(orders, products)

	order := &model.Order{
		UserID: uuid.New(),
		Items:  []model.OrderItem{{ProductID: p.ID, Quantity: 2}},
		Status: model.OrderStatusPending,
		Total:  decimal.NewFromInt(160),
	}
	require.NoError(t, orders.Create(context.Background(), order))

	// pending -> shipped: no stock movement.
	_, err := svc.ChangeStatus(context.Background(), order.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, 4, products.products[p.ID].Stock)

	// shipped -> cancelled: restock exactly once.
	_, err = svc.ChangeStatus(context.Background(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 6, products.products[p.ID].Stock)

	_, err = svc.ChangeStatus(context.Background(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 6, products.products[p.ID].Stock)
}

func TestOrderService_DeleteOrder(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Libro", 12, 5)
	svc := newOrderService(orders, products)
	userID := uuid.New()

	resp, err := svc.PlaceOrder(context.Background(), userID, dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, products.products[p.ID].Stock)

	require.NoError(t, svc.DeleteOrder(context.Background(), resp.ID, userID))
	assert.Equal(t, 5, products.products[p.ID].Stock)
	assert.Empty(t, orders.orders)
}

func TestOrderService_DeleteOrder_NotFound(t *testing.T) {
	svc := newOrderService(newMockOrderRepo(), newMockProductRepo())
	err := svc.DeleteOrder(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_DeleteOrder_NotOwner(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Lampara", 30, 5)
	svc := newOrderService(orders, products)
	owner := uuid.New()

	resp, err := svc.PlaceOrder(context.Background(), owner, dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	err = svc.DeleteOrder(context.Background(), resp.ID, uuid.New())
	assert.ErrorIs(t, err, ErrOrderAccessDenied)
	assert.Len(t, orders.orders, 1)
	assert.Equal(t, 4, products.products[p.ID].Stock)
}

func TestOrderService_DeleteOrder_NotPending(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Reloj", 60, 5)
	svc := newOrderService(orders, products)
	userID := uuid.New()

	order := &model.Order{
		UserID: userID,
		Items:  []model.OrderItem{{ProductID: p.ID, Quantity: 1}},
		Status: model.OrderStatusShipped,
		Total:  decimal.NewFromInt(60),
	}
	require.NoError(t, orders.Create(context.Background(), order))

	err := svc.DeleteOrder(context.Background(), order.ID, userID)
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.Len(t, orders.orders, 1)
	assert.Equal(t, 5, products.products[p.ID].Stock)
}

func TestOrderService_ListMine(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	p := seedProduct(products, "Funda", 8, 20)
	svc := newOrderService(orders, products)
	userID := uuid.New()

	_, err := svc.PlaceOrder(context.Background(), userID, dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	// Another user's order must not show up.
	_, err = svc.PlaceOrder(context.Background(), uuid.New(), dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	resp, err := svc.ListMine(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Orders[0].Items, 1)
	require.NotNil(t, resp.Orders[0].Items[0].Product)
	assert.Equal(t, "Funda", resp.Orders[0].Items[0].Product.Name)
	assert.Nil(t, resp.Orders[0].User)
}

func TestOrderService_ListAll_ResolvesOwners(t *testing.T) {
	orders := newMockOrderRepo()
	products := newMockProductRepo()
	users := newMockUserRepo()
	p := seedProduct(products, "Bolso", 25, 10)
	svc := NewOrderService(orders, products, users, mockTxRunner{}, nil, nil)

	owner := &model.User{Name: "Ana", Email: "ana@example.com", Role: model.RoleCustomer}
	require.NoError(t, users.Create(context.Background(), owner))

	_, err := svc.PlaceOrder(context.Background(), owner.ID, dto.CreateOrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	resp, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.NotNil(t, resp.Orders[0].User)
	assert.Equal(t, "Ana", resp.Orders[0].User.Name)
}
