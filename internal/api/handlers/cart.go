package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gostorefront/storefront-api/internal/api/middleware"
	"github.com/gostorefront/storefront-api/internal/models"
	service "github.com/gostorefront/storefront-api/internal/services"
	"github.com/gostorefront/storefront-api/internal/utils"
	"github.com/gostorefront/storefront-api/internal/utils/response"
)

type CartHandler struct {
	cartService *service.CartService
	validator   *validator.Validate
}

func NewCartHandler(cartService *service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService, validator: validator.New()}
}

// AddToCart creates the cart implicitly when no usable cart id is supplied.
func (h *CartHandler) AddToCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		var req models.AddItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid add to cart input")
			return
		}

		cart, err := h.cartService.AddItem(r.Context(), &req)
		if err != nil {
			logger.Error("Failed to add item to cart", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Item added to cart",
			slog.String("cartId", cart.ID.String()),
			slog.String("productId", req.ProductID.String()),
			slog.Int("quantity", req.Quantity))
		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		cartID, err := utils.ParseID(r, "cartId", "Cart not found")
		if err != nil {
			logger.Warn("Invalid cart id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		cart, err := h.cartService.GetCart(r.Context(), cartID)
		if err != nil {
			logger.Error("Failed to get cart", slog.String("cartId", cartID.String()), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) UpdateItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		cartID, err := utils.ParseID(r, "cartId", "Cart not found")
		if err != nil {
			response.Error(w, err)
			return
		}

		productID, err := utils.ParseID(r, "productId", "Product not found")
		if err != nil {
			response.Error(w, err)
			return
		}

		var req models.UpdateQuantityRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update item input")
			return
		}

		cart, err := h.cartService.UpdateQuantity(r.Context(), cartID, productID, req.Quantity)
		if err != nil {
			logger.Error("Failed to update cart item",
				slog.String("cartId", cartID.String()),
				slog.String("productId", productID.String()),
				slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Cart item updated",
			slog.String("cartId", cartID.String()),
			slog.String("productId", productID.String()),
			slog.Int("quantity", req.Quantity))
		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		cartID, err := utils.ParseID(r, "cartId", "Cart not found")
		if err != nil {
			response.Error(w, err)
			return
		}

		productID, err := utils.ParseID(r, "productId", "Product not found")
		if err != nil {
			response.Error(w, err)
			return
		}

		cart, err := h.cartService.RemoveItem(r.Context(), cartID, productID)
		if err != nil {
			logger.Error("Failed to remove cart item",
				slog.String("cartId", cartID.String()),
				slog.String("productId", productID.String()),
				slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Cart item removed",
			slog.String("cartId", cartID.String()),
			slog.String("productId", productID.String()))
		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		cartID, err := utils.ParseID(r, "cartId", "Cart not found")
		if err != nil {
			response.Error(w, err)
			return
		}

		cart, err := h.cartService.ClearCart(r.Context(), cartID)
		if err != nil {
			logger.Error("Failed to clear cart", slog.String("cartId", cartID.String()), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Cart cleared", slog.String("cartId", cartID.String()))
		response.Success(w, http.StatusOK, map[string]any{
			"message": "Cart cleared successfully",
			"cart":    cart,
		})
	}
}
