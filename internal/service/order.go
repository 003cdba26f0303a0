package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tiendago/tienda-api/internal/dto"
	"github.com/tiendago/tienda-api/internal/events"
	"github.com/tiendago/tienda-api/internal/model"
	"github.com/tiendago/tienda-api/internal/repository"
)

type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	tx          repository.TxRunner
	redisClient *redis.Client
	events      *events.Publisher
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	tx repository.TxRunner,
	redisClient *redis.Client,
	events *events.Publisher,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		tx:          tx,
		redisClient: redisClient,
		events:      events,
	}
}

// parseOrderLines turns the raw request into validated order lines. Everything
// downstream consumes the validated form and never re-checks it.
func parseOrderLines(items []dto.OrderItemRequest) ([]model.OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	lines := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, ErrMissingProductRef
		}
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		lines = append(lines, model.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines, nil
}

// PlaceOrder validates every line against the catalog, computes the total from
// current prices, decrements stock, and persists the order — all inside one
// transaction, so a failure at any point leaves stock untouched.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	lines, err := parseOrderLines(req.Items)
	if err != nil {
		return nil, err
	}

	order := &model.Order{UserID: userID, Items: lines, Status: model.OrderStatusPending}
	products := make(map[uuid.UUID]*model.Product, len(lines))

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// First pass: existence and stock checks plus the total. No writes
		// happen until every line has passed.
		total := decimal.Zero
		for _, line := range lines {
			product, err := s.productRepo.GetByID(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("get product: %w", err)
			}
			if product == nil {
				return &UnknownProductError{ProductID: line.ProductID}
			}
			if product.Stock < line.Quantity {
				return &InsufficientStockError{ProductID: product.ID, Name: product.Name}
			}
			products[product.ID] = product
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		// Second pass: guarded decrements. A concurrent order that won the
		// race fails the guard and aborts the whole transaction.
		for _, line := range lines {
			if err := s.productRepo.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return &InsufficientStockError{ProductID: line.ProductID, Name: products[line.ProductID].Name}
				}
				return fmt.Errorf("decrement stock: %w", err)
			}
		}

		order.Total = total
		return s.orderRepo.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProducts(ctx, lines)
	s.publish(ctx, model.OrderEvent{
		Kind: model.OrderEventCreated, OrderID: order.ID, UserID: userID, Status: order.Status,
	})

	resp := toOrderResponse(order, products, nil)
	return &resp, nil
}

// ListMine returns the requesting user's orders with product detail resolved.
func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID) (*dto.OrderListResponse, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.toListResponse(ctx, orders, false)
}

// ListAll returns every order with both owner and product detail resolved.
func (s *OrderService) ListAll(ctx context.Context) (*dto.OrderListResponse, error) {
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.toListResponse(ctx, orders, true)
}

// ChangeStatus moves an order to the target status. The transition into
// cancelled from any non-cancelled state restores stock for every line;
// no other transition touches stock, so restock fires at most once.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uuid.UUID, rawStatus string) (*dto.OrderResponse, error) {
	status, ok := model.ParseOrderStatus(rawStatus)
	if !ok {
		return nil, ErrInvalidStatus
	}

	var order *model.Order
	restocked := false
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		restocked = false
		var err error
		order, err = s.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}

		if order.Status != model.OrderStatusCancelled && status == model.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := s.productRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("restore stock: %w", err)
				}
			}
			restocked = true
		}
		return s.orderRepo.UpdateStatus(ctx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	order.Status = status
	if restocked {
		s.invalidateProducts(ctx, order.Items)
	}
	s.publish(ctx, model.OrderEvent{
		Kind: model.OrderEventStatusChanged, OrderID: order.ID, UserID: order.UserID, Status: status,
	})

	resp := toOrderResponse(order, s.resolveProducts(ctx, order.Items), nil)
	return &resp, nil
}

// DeleteOrder removes a pending order owned by the requesting user and
// returns its stock to the catalog. A pending order has never been restocked,
// so this is the single restock for its lines.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID, userID uuid.UUID) error {
	var items []model.OrderItem
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.UserID != userID {
			return ErrOrderAccessDenied
		}
		if order.Status != model.OrderStatusPending {
			return ErrOrderNotPending
		}

		for _, item := range order.Items {
			if err := s.productRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
		items = order.Items
		return s.orderRepo.Delete(ctx, orderID)
	})
	if err != nil {
		return err
	}

	s.invalidateProducts(ctx, items)
	s.publish(ctx, model.OrderEvent{Kind: model.OrderEventDeleted, OrderID: orderID, UserID: userID})
	return nil
}

func (s *OrderService) toListResponse(ctx context.Context, orders []model.Order, resolveOwners bool) (*dto.OrderListResponse, error) {
	products := make(map[uuid.UUID]*model.Product)
	users := make(map[uuid.UUID]*model.User)

	items := make([]dto.OrderResponse, 0, len(orders))
	for _, order := range orders {
		for _, line := range order.Items {
			if _, seen := products[line.ProductID]; seen {
				continue
			}
			product, err := s.productRepo.GetByID(ctx, line.ProductID)
			if err != nil {
				return nil, fmt.Errorf("resolve product: %w", err)
			}
			products[line.ProductID] = product
		}

		var owner *model.User
		if resolveOwners {
			var seen bool
			if owner, seen = users[order.UserID]; !seen {
				var err error
				owner, err = s.userRepo.GetByID(ctx, order.UserID)
				if err != nil {
					return nil, fmt.Errorf("resolve user: %w", err)
				}
				users[order.UserID] = owner
			}
		}
		items = append(items, toOrderResponse(&order, products, owner))
	}
	return &dto.OrderListResponse{Orders: items, Total: len(items)}, nil
}

func (s *OrderService) resolveProducts(ctx context.Context, items []model.OrderItem) map[uuid.UUID]*model.Product {
	products := make(map[uuid.UUID]*model.Product, len(items))
	for _, item := range items {
		if _, seen := products[item.ProductID]; seen {
			continue
		}
		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			continue
		}
		products[item.ProductID] = product
	}
	return products
}

func (s *OrderService) invalidateProducts(ctx context.Context, items []model.OrderItem) {
	if s.redisClient == nil {
		return
	}
	for _, item := range items {
		s.redisClient.Del(ctx, productCacheKey(item.ProductID))
	}
}

func (s *OrderService) publish(ctx context.Context, ev model.OrderEvent) {
	if s.events != nil {
		_ = s.events.PublishOrderEvent(ctx, ev)
	}
}

// toOrderResponse renders an order; products in the map resolve line detail,
// missing entries leave the line as a bare reference.
func toOrderResponse(order *model.Order, products map[uuid.UUID]*model.Product, owner *model.User) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		line := dto.OrderItemResponse{ProductID: item.ProductID, Quantity: item.Quantity}
		if product := products[item.ProductID]; product != nil {
			resp := toProductResponse(product)
			line.Product = &resp
		}
		items = append(items, line)
	}

	resp := dto.OrderResponse{
		ID:        order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Total:     order.Total,
		Items:     items,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if owner != nil {
		user := toUserResponse(owner)
		resp.User = &user
	}
	return resp
}
