package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/gostorefront/storefront-api/internal/errors"
	"github.com/gostorefront/storefront-api/internal/models"
	repository "github.com/gostorefront/storefront-api/internal/repositories"
)

// OrderService converts carts into immutable priced orders.
type OrderService struct {
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	catalog   *CatalogService
}

func NewOrderService(orderRepo repository.OrderRepository, cartRepo repository.CartRepository, catalog *CatalogService) *OrderService {
	return &OrderService{orderRepo: orderRepo, cartRepo: cartRepo, catalog: catalog}
}

// CreateOrder snapshots the cart's items at current catalog prices into a
// new order, then empties the cart. The order write must commit before the
// cart-clearing write is attempted; if clearing fails afterwards the order
// stands and the stale cart is surfaced in the log, not rolled back.
func (s *OrderService) CreateOrder(ctx context.Context, cartID string) (*models.Order, error) {

	id, err := uuid.Parse(cartID)
	if err != nil {
		return nil, apperrors.NotFoundError("Cart not found").WithError(err)
	}

	// Checkout holds the cart's stripe from read to clear so a concurrent
	// add cannot land in between and be wiped.
	mu := cartLock(id)
	mu.Lock()
	defer mu.Unlock()

	cart, err := s.cartRepo.GetCartByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, apperrors.StoreFailureError("Failed to retrieve cart").WithError(err)
	}

	if cart.ItemCount() == 0 {
		return nil, apperrors.InvalidStateError("Cart is empty")
	}

	orderID := uuid.New()

	var items []models.OrderItem

	var totalAmount float64

	for _, cartItem := range cart.Items {

		product, err := s.catalog.GetProduct(ctx, cartItem.ProductID)
		if err != nil {
			return nil, err
		}

		// Price is copied here, frozen against later catalog changes.
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: cartItem.ProductID,
			Quantity:  cartItem.Quantity,
			Price:     product.Price,
			Product:   product,
			CreatedAt: time.Now(),
		})

		totalAmount += product.Price * float64(cartItem.Quantity)

	}

	order := &models.Order{
		ID:          orderID,
		Status:      models.OrderStatusPending,
		TotalAmount: totalAmount,
		Items:       items,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		return nil, apperrors.StoreFailureError("Failed to create order").WithError(err)
	}

	cart.Items = make(map[string]models.CartItem)
	cart.UpdatedAt = time.Now()

	if err := s.cartRepo.UpdateCartItems(ctx, cart); err != nil {
		slog.Warn("Order created but cart clear failed, cart left stale",
			slog.String("orderId", order.ID.String()),
			slog.String("cartId", cart.ID.String()),
			slog.String("error", err.Error()))
	}

	return order, nil
}

// GetAllOrders returns every order, most recent first.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {

	orders, err := s.orderRepo.ListOrders(ctx)
	if err != nil {
		return nil, apperrors.StoreFailureError("Failed to fetch orders").WithError(err)
	}

	for i := range orders {
		s.resolveItems(ctx, &orders[i])
	}

	return orders, nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Order not found").WithError(err)
		}

		return nil, apperrors.StoreFailureError("Failed to retrieve order").WithError(err)
	}

	s.resolveItems(ctx, order)

	return order, nil
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {

	order, err := s.orderRepo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Order not found").WithError(err)
		}

		return nil, apperrors.StoreFailureError("Failed to update order status").WithError(err)
	}

	s.resolveItems(ctx, order)

	return order, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {

	if err := s.orderRepo.DeleteOrder(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFoundError("Order not found").WithError(err)
		}

		return apperrors.StoreFailureError("Failed to delete order").WithError(err)
	}

	return nil
}

// resolveItems is a read-side join of catalog products onto order items.
// Stored item prices are never touched by it.
func (s *OrderService) resolveItems(ctx context.Context, order *models.Order) {

	for i := range order.Items {

		if order.Items[i].Product != nil {
			continue
		}

		product, err := s.catalog.GetProduct(ctx, order.Items[i].ProductID)
		if err != nil {
			continue
		}

		order.Items[i].Product = product

	}
}
