package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/gostorefront/storefront-api/internal/errors"
	"github.com/gostorefront/storefront-api/internal/models"
	repository "github.com/gostorefront/storefront-api/internal/repositories"
	service "github.com/gostorefront/storefront-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestOrderService(orderRepo repository.OrderRepository, cartRepo repository.CartRepository, productRepo repository.ProductRepository) *service.OrderService {
	return service.NewOrderService(orderRepo, cartRepo, newTestCatalog(productRepo))
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	productID1 := uuid.New()
	productID2 := uuid.New()
	product1 := &models.Product{ID: productID1, Name: "Mug", Price: 10}
	product2 := &models.Product{ID: productID2, Name: "Plate", Price: 5}

	t.Run("Success - Snapshots Prices And Clears Cart", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		cart := cartWithItems(map[string]models.CartItem{
			productID1.String(): {ProductID: productID1, Quantity: 2},
			productID2.String(): {ProductID: productID2, Quantity: 1},
		})

		mockProductRepo.On("GetProductByID", ctx, productID1).Return(product1, nil)
		mockProductRepo.On("GetProductByID", ctx, productID2).Return(product2, nil)
		mockCartRepo.On("GetCartByID", ctx, cart.ID).Return(cart, nil).Once()

		orderPersisted := false
		mockOrderRepo.On("CreateOrder", ctx, mock.AnythingOfType("*models.Order")).
			Run(func(args mock.Arguments) { orderPersisted = true }).
			Return(nil).Once()
		mockCartRepo.On("UpdateCartItems", ctx, cart).
			Run(func(args mock.Arguments) {
				// order-then-clear is the one hard ordering contract
				assert.True(t, orderPersisted, "cart must not be cleared before the order is persisted")
				assert.Equal(t, 0, cart.ItemCount())
			}).
			Return(nil).Once()

		// Act
		order, err := orderService.CreateOrder(ctx, cart.ID.String())

		// Assert
		require.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, models.OrderStatusPending, order.Status)
		assert.Equal(t, float64(25), order.TotalAmount)
		require.Len(t, order.Items, 2)

		prices := map[uuid.UUID]float64{}
		for _, item := range order.Items {
			prices[item.ProductID] = item.Price
			assert.Equal(t, order.ID, item.OrderID)
			assert.NotNil(t, item.Product)
		}
		assert.Equal(t, float64(10), prices[productID1])
		assert.Equal(t, float64(5), prices[productID2])

		assert.Equal(t, 0, cart.ItemCount(), "source cart must end empty")
		mockOrderRepo.AssertExpectations(t)
		mockCartRepo.AssertExpectations(t)
	})

	t.Run("Failure - Empty Cart Performs No Mutation", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		cart := cartWithItems(map[string]models.CartItem{})
		mockCartRepo.On("GetCartByID", ctx, cart.ID).Return(cart, nil).Once()

		// Act
		order, err := orderService.CreateOrder(ctx, cart.ID.String())

		// Assert
		assert.Error(t, err)
		assert.Nil(t, order)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidState, appErr.Code)
		assert.Equal(t, "Cart is empty", appErr.Message)
		mockOrderRepo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		mockCartRepo.AssertNotCalled(t, "UpdateCartItems", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Cart Not Found Creates No Order", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)
		cartID := uuid.New()

		mockCartRepo.On("GetCartByID", ctx, cartID).Return(nil, sql.ErrNoRows).Once()

		// Act
		order, err := orderService.CreateOrder(ctx, cartID.String())

		// Assert
		assert.Error(t, err)
		assert.Nil(t, order)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
		mockOrderRepo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Unparseable Cart Id Is Not Found", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		// Act
		order, err := orderService.CreateOrder(ctx, "not-a-uuid")

		// Assert
		assert.Error(t, err)
		assert.Nil(t, order)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
		mockCartRepo.AssertNotCalled(t, "GetCartByID", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Order Persistence Fails, Cart Untouched", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)
		dbError := errors.New("insert failed")

		cart := cartWithItems(map[string]models.CartItem{
			productID1.String(): {ProductID: productID1, Quantity: 2},
		})

		mockProductRepo.On("GetProductByID", ctx, productID1).Return(product1, nil)
		mockCartRepo.On("GetCartByID", ctx, cart.ID).Return(cart, nil).Once()
		mockOrderRepo.On("CreateOrder", ctx, mock.AnythingOfType("*models.Order")).Return(dbError).Once()

		// Act
		order, err := orderService.CreateOrder(ctx, cart.ID.String())

		// Assert
		assert.Error(t, err)
		assert.Nil(t, order)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeStoreFailure, appErr.Code)
		assert.Equal(t, 1, cart.ItemCount(), "cart must remain untouched when the order write fails")
		mockCartRepo.AssertNotCalled(t, "UpdateCartItems", mock.Anything, mock.Anything)
	})

	t.Run("Success - Cart Clear Failure Still Returns The Order", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		cart := cartWithItems(map[string]models.CartItem{
			productID1.String(): {ProductID: productID1, Quantity: 1},
		})

		mockProductRepo.On("GetProductByID", ctx, productID1).Return(product1, nil)
		mockCartRepo.On("GetCartByID", ctx, cart.ID).Return(cart, nil).Once()
		mockOrderRepo.On("CreateOrder", ctx, mock.AnythingOfType("*models.Order")).Return(nil).Once()
		mockCartRepo.On("UpdateCartItems", ctx, cart).Return(errors.New("update failed")).Once()

		// Act
		order, err := orderService.CreateOrder(ctx, cart.ID.String())

		// Assert
		require.NoError(t, err, "a confirmed order with a stale cart is surfaced, not rolled back")
		assert.NotNil(t, order)
		mockOrderRepo.AssertExpectations(t)
		mockCartRepo.AssertExpectations(t)
	})
}

func TestPriceSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	productID := uuid.New()

	mockOrderRepo := repository.NewMockOrderRepository()
	mockCartRepo := repository.NewMockCartRepository()
	mockProductRepo := repository.NewMockProductRepository()
	orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

	cart := cartWithItems(map[string]models.CartItem{
		productID.String(): {ProductID: productID, Quantity: 2},
	})

	// Price is 10 at order time.
	mockProductRepo.On("GetProductByID", ctx, productID).Return(&models.Product{ID: productID, Price: 10}, nil).Once()
	mockCartRepo.On("GetCartByID", ctx, cart.ID).Return(cart, nil).Once()

	// Capture what went to the store, stripped of the read-side join, the
	// way a later fetch would see it.
	var stored *models.Order

	mockOrderRepo.On("CreateOrder", ctx, mock.AnythingOfType("*models.Order")).
		Run(func(args mock.Arguments) {
			o := *args.Get(1).(*models.Order)
			o.Items = append([]models.OrderItem(nil), o.Items...)
			for i := range o.Items {
				o.Items[i].Product = nil
			}
			stored = &o
		}).
		Return(nil).Once()
	mockCartRepo.On("UpdateCartItems", ctx, cart).Return(nil).Once()

	order, err := orderService.CreateOrder(ctx, cart.ID.String())
	require.NoError(t, err)
	assert.Equal(t, float64(20), order.TotalAmount)

	// The catalog price changes afterwards.
	mockProductRepo.On("GetProductByID", ctx, productID).Return(&models.Product{ID: productID, Price: 25}, nil).Once()
	mockOrderRepo.On("GetOrderByID", ctx, order.ID).Return(stored, nil).Once()

	fetched, err := orderService.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(20), fetched.TotalAmount, "stored total must not track catalog price changes")
	assert.Equal(t, float64(10), fetched.Items[0].Price, "stored item price is a frozen copy")
	assert.Equal(t, float64(25), fetched.Items[0].Product.Price, "the join reflects the current catalog")
}

func TestGetAllOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Preserves Newest-First Ordering", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		newer := models.Order{ID: uuid.New(), CreatedAt: time.Now()}
		older := models.Order{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}

		mockOrderRepo.On("ListOrders", ctx).Return([]models.Order{newer, older}, nil).Once()

		// Act
		orders, err := orderService.GetAllOrders(ctx)

		// Assert
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, newer.ID, orders[0].ID)
		assert.Equal(t, older.ID, orders[1].ID)
		mockOrderRepo.AssertExpectations(t)
	})

	t.Run("Failure - Store Error", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		mockOrderRepo.On("ListOrders", ctx).Return(nil, errors.New("query failed")).Once()

		// Act
		orders, err := orderService.GetAllOrders(ctx)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, orders)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeStoreFailure, appErr.Code)
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		updated := &models.Order{ID: orderID, Status: models.OrderStatusShipped}
		mockOrderRepo.On("UpdateOrderStatus", ctx, orderID, models.OrderStatusShipped).Return(updated, nil).Once()

		// Act
		order, err := orderService.UpdateOrderStatus(ctx, orderID, models.OrderStatusShipped)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusShipped, order.Status)
		mockOrderRepo.AssertExpectations(t)
	})

	t.Run("Failure - Order Not Found", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		mockOrderRepo.On("UpdateOrderStatus", ctx, orderID, models.OrderStatusShipped).Return(nil, sql.ErrNoRows).Once()

		// Act
		order, err := orderService.UpdateOrderStatus(ctx, orderID, models.OrderStatusShipped)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, order)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
	})
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		mockOrderRepo.On("DeleteOrder", ctx, orderID).Return(nil).Once()

		// Act
		err := orderService.DeleteOrder(ctx, orderID)

		// Assert
		assert.NoError(t, err)
		mockOrderRepo.AssertExpectations(t)
	})

	t.Run("Failure - Order Not Found", func(t *testing.T) {
		// Arrange
		mockOrderRepo := repository.NewMockOrderRepository()
		mockCartRepo := repository.NewMockCartRepository()
		mockProductRepo := repository.NewMockProductRepository()
		orderService := newTestOrderService(mockOrderRepo, mockCartRepo, mockProductRepo)

		mockOrderRepo.On("DeleteOrder", ctx, orderID).Return(sql.ErrNoRows).Once()

		// Act
		err := orderService.DeleteOrder(ctx, orderID)

		// Assert
		assert.Error(t, err)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
	})
}

// Checkout and cart mutation contend on the same per-cart lock, so an add
// issued mid-checkout waits and then lands on the cleared cart instead of
// being wiped by the clear.
func TestCreateOrderSerializesCartMutation(t *testing.T) {
	// Arrange
	mockOrderRepo := repository.NewMockOrderRepository()
	mockCartRepo := repository.NewMockCartRepository()
	mockProductRepo := repository.NewMockProductRepository()
	catalog := newTestCatalog(mockProductRepo)
	orderService := service.NewOrderService(mockOrderRepo, mockCartRepo, catalog)
	cartService := service.NewCartService(mockCartRepo, catalog)

	orderedProductID := uuid.New()
	addedProductID := uuid.New()

	cart := cartWithItems(map[string]models.CartItem{
		orderedProductID.String(): {ProductID: orderedProductID, Quantity: 2},
	})

	mockProductRepo.On("GetProductByID", mock.Anything, orderedProductID).Return(&models.Product{ID: orderedProductID, Price: 10}, nil)
	mockProductRepo.On("GetProductByID", mock.Anything, addedProductID).Return(&models.Product{ID: addedProductID, Price: 5}, nil)
	mockCartRepo.On("GetCartByID", mock.Anything, cart.ID).Return(cart, nil)
	mockCartRepo.On("UpdateCartItems", mock.Anything, cart).Return(nil)

	checkoutEntered := make(chan struct{})
	releaseCheckout := make(chan struct{})
	mockOrderRepo.On("CreateOrder", mock.Anything, mock.AnythingOfType("*models.Order")).
		Run(func(args mock.Arguments) {
			close(checkoutEntered)
			<-releaseCheckout
		}).
		Return(nil).Once()

	checkoutDone := make(chan struct{})

	go func() {
		defer close(checkoutDone)

		_, err := orderService.CreateOrder(context.Background(), cart.ID.String())
		assert.NoError(t, err)
	}()

	<-checkoutEntered

	addDone := make(chan struct{})

	go func() {
		defer close(addDone)

		_, err := cartService.AddItem(context.Background(), &models.AddItemRequest{
			CartID:    cart.ID.String(),
			ProductID: addedProductID,
			Quantity:  1,
		})
		assert.NoError(t, err)
	}()

	// Act: the add must not slip in while checkout holds the cart.
	select {
	case <-addDone:
		t.Fatal("cart mutation ran while checkout held the cart")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseCheckout)
	<-checkoutDone
	<-addDone

	// Assert: the add landed on the cleared cart rather than being wiped.
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[addedProductID.String()].Quantity)
}
