package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gostorefront/storefront-api/internal/models"
	repository "github.com/gostorefront/storefront-api/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrderRepo(t *testing.T) (repository.OrderRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return repository.NewOrderRepo(db), mock
}

func TestOrderRepository_CreateOrder(t *testing.T) {

	orderSQL := regexp.QuoteMeta(`
		INSERT INTO orders (id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`)

	itemSQL := regexp.QuoteMeta(`
		INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`)

	t.Run("Success - Order And Items In One Transaction", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		order := &models.Order{
			ID:          uuid.New(),
			Status:      models.OrderStatusPending,
			TotalAmount: 25,
			Items: []models.OrderItem{
				{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, Price: 10},
				{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, Price: 5},
			},
		}

		mock.ExpectBegin()
		mock.ExpectExec(orderSQL).
			WithArgs(order.ID, order.Status, order.TotalAmount).
			WillReturnResult(sqlmock.NewResult(0, 1))

		for _, item := range order.Items {
			mock.ExpectExec(itemSQL).
				WithArgs(item.ID, order.ID, item.ProductID, item.Quantity, item.Price).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}

		mock.ExpectCommit()

		// Act
		err := repo.CreateOrder(context.Background(), order)

		// Assert
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Item Insert Rolls Back The Order", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		order := &models.Order{
			ID:          uuid.New(),
			Status:      models.OrderStatusPending,
			TotalAmount: 10,
			Items: []models.OrderItem{
				{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, Price: 10},
			},
		}

		mock.ExpectBegin()
		mock.ExpectExec(orderSQL).
			WithArgs(order.ID, order.Status, order.TotalAmount).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(itemSQL).
			WithArgs(order.Items[0].ID, order.ID, order.Items[0].ProductID, order.Items[0].Quantity, order.Items[0].Price).
			WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		// Act
		err := repo.CreateOrder(context.Background(), order)

		// Assert
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetOrderByID(t *testing.T) {

	orderSQL := regexp.QuoteMeta(`
		SELECT id, status, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`)

	itemsSQL := regexp.QuoteMeta(`
		SELECT id, product_id, quantity, price, created_at
		FROM order_items
		WHERE order_id = $1
	`)

	t.Run("Success", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		orderID := uuid.New()
		itemID := uuid.New()
		productID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(orderSQL).
			WithArgs(orderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status", "total_amount", "created_at", "updated_at"}).
				AddRow(orderID, models.OrderStatusPending, 19.98, now, now))
		mock.ExpectQuery(itemsSQL).
			WithArgs(orderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "price", "created_at"}).
				AddRow(itemID, productID, 2, 9.99, now))

		// Act
		order, err := repo.GetOrderByID(context.Background(), orderID)

		// Assert
		assert.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, orderID, order.ID)
		require.Len(t, order.Items, 1)
		assert.Equal(t, orderID, order.Items[0].OrderID)
		assert.Equal(t, 9.99, order.Items[0].Price)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		orderID := uuid.New()

		mock.ExpectQuery(orderSQL).WithArgs(orderID).WillReturnError(sql.ErrNoRows)

		// Act
		order, err := repo.GetOrderByID(context.Background(), orderID)

		// Assert
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, order)
	})
}

func TestOrderRepository_ListOrders(t *testing.T) {

	listSQL := regexp.QuoteMeta(`
		SELECT id, status, total_amount, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)

	itemsSQL := regexp.QuoteMeta(`
		SELECT id, product_id, quantity, price, created_at
		FROM order_items
		WHERE order_id = $1
	`)

	t.Run("Success - Newest First", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		newerID := uuid.New()
		olderID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(listSQL).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status", "total_amount", "created_at", "updated_at"}).
				AddRow(newerID, models.OrderStatusPending, 10.0, now, now).
				AddRow(olderID, models.OrderStatusShipped, 5.0, now.Add(-time.Hour), now.Add(-time.Hour)))
		mock.ExpectQuery(itemsSQL).WithArgs(newerID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "price", "created_at"}))
		mock.ExpectQuery(itemsSQL).WithArgs(olderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "price", "created_at"}))

		// Act
		orders, err := repo.ListOrders(context.Background())

		// Assert
		assert.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, newerID, orders[0].ID)
		assert.Equal(t, olderID, orders[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - No Orders", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)

		mock.ExpectQuery(listSQL).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status", "total_amount", "created_at", "updated_at"}))

		// Act
		orders, err := repo.ListOrders(context.Background())

		// Assert
		assert.NoError(t, err)
		assert.Empty(t, orders)
	})
}

func TestOrderRepository_UpdateOrderStatus(t *testing.T) {

	updateSQL := regexp.QuoteMeta(`
		UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3
	`)

	orderSQL := regexp.QuoteMeta(`
		SELECT id, status, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`)

	itemsSQL := regexp.QuoteMeta(`
		SELECT id, product_id, quantity, price, created_at
		FROM order_items
		WHERE order_id = $1
	`)

	t.Run("Success", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		orderID := uuid.New()
		now := time.Now()

		mock.ExpectExec(updateSQL).
			WithArgs(models.OrderStatusShipped, sqlmock.AnyArg(), orderID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(orderSQL).
			WithArgs(orderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "status", "total_amount", "created_at", "updated_at"}).
				AddRow(orderID, models.OrderStatusShipped, 10.0, now, now))
		mock.ExpectQuery(itemsSQL).WithArgs(orderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "price", "created_at"}))

		// Act
		order, err := repo.UpdateOrderStatus(context.Background(), orderID, models.OrderStatusShipped)

		// Assert
		assert.NoError(t, err)
		require.NotNil(t, order)
		assert.Equal(t, models.OrderStatusShipped, order.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Missing Order Surfaces ErrNoRows", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		orderID := uuid.New()

		mock.ExpectExec(updateSQL).
			WithArgs(models.OrderStatusShipped, sqlmock.AnyArg(), orderID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// Act
		order, err := repo.UpdateOrderStatus(context.Background(), orderID, models.OrderStatusShipped)

		// Assert
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, order)
	})
}

func TestOrderRepository_DeleteOrder(t *testing.T) {

	deleteSQL := regexp.QuoteMeta(`
		DELETE FROM orders WHERE id = $1
	`)

	t.Run("Success", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		orderID := uuid.New()

		mock.ExpectExec(deleteSQL).WithArgs(orderID).WillReturnResult(sqlmock.NewResult(0, 1))

		// Act
		err := repo.DeleteOrder(context.Background(), orderID)

		// Assert
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Missing Order Surfaces ErrNoRows", func(t *testing.T) {
		// Arrange
		repo, mock := setupOrderRepo(t)
		orderID := uuid.New()

		mock.ExpectExec(deleteSQL).WithArgs(orderID).WillReturnResult(sqlmock.NewResult(0, 0))

		// Act
		err := repo.DeleteOrder(context.Background(), orderID)

		// Assert
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
