package service

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/gostorefront/storefront-api/internal/errors"
	"github.com/gostorefront/storefront-api/internal/models"
	repository "github.com/gostorefront/storefront-api/internal/repositories"
)

const cartLockStripes = 64

// cartLocks serializes in-process read-modify-write cycles on a single
// cart. It is package level because checkout clears carts too; both paths
// must contend on the same stripe or a concurrent add is lost. The store
// itself stays last-writer-wins across processes, as in the original
// design.
var cartLocks [cartLockStripes]sync.Mutex

func cartLock(id uuid.UUID) *sync.Mutex {
	return &cartLocks[binary.BigEndian.Uint32(id[:4])%cartLockStripes]
}

// CartService owns the mutable item list of session-less carts.
type CartService struct {
	cartRepo repository.CartRepository
	catalog  *CatalogService
}

func NewCartService(cartRepo repository.CartRepository, catalog *CatalogService) *CartService {
	return &CartService{cartRepo: cartRepo, catalog: catalog}
}

// AddItem resolves the cart or creates one when the supplied id is absent or
// does not resolve; this is the only way carts come into existence. Adding a
// product already in the cart accumulates its quantity.
func (s *CartService) AddItem(ctx context.Context, req *models.AddItemRequest) (*models.Cart, error) {

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	var cart *models.Cart

	if cartID, parseErr := uuid.Parse(req.CartID); parseErr == nil {

		mu := cartLock(cartID)
		mu.Lock()
		defer mu.Unlock()

		existing, err := s.cartRepo.GetCartByID(ctx, cartID)

		switch {
		case err == nil:
			cart = existing
		case errors.Is(err, sql.ErrNoRows):
			// unresolvable id, fall through to the create branch
		default:
			return nil, apperrors.StoreFailureError("Failed to retrieve cart").WithError(err)
		}

	}

	created := false

	if cart == nil {
		cart = &models.Cart{
			ID:        uuid.New(),
			Items:     make(map[string]models.CartItem),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		created = true
	}

	key := req.ProductID.String()

	item, exists := cart.Items[key]
	if exists {
		item.Quantity += req.Quantity
	} else {
		item = models.CartItem{ProductID: req.ProductID, Quantity: req.Quantity}
	}

	cart.Items[key] = item
	cart.UpdatedAt = time.Now()

	if created {
		err = s.cartRepo.CreateCart(ctx, cart)
	} else {
		err = s.cartRepo.UpdateCartItems(ctx, cart)
	}

	if err != nil {
		return nil, apperrors.StoreFailureError("Failed to save cart").WithError(err)
	}

	item.Product = product
	cart.Items[key] = item
	s.resolveItems(ctx, cart)

	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	s.resolveItems(ctx, cart)

	return cart, nil
}

// UpdateQuantity overwrites the stored quantity of an existing line. A
// quantity of zero or less removes the line; update and remove are one rule.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.Cart, error) {

	mu := cartLock(cartID)
	mu.Lock()
	defer mu.Unlock()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	key := productID.String()

	item, exists := cart.Items[key]
	if !exists {
		return nil, apperrors.NotFoundError("Item not found in cart")
	}

	if quantity <= 0 {
		delete(cart.Items, key)
	} else {
		item.Quantity = quantity
		cart.Items[key] = item
	}

	if err := s.saveItems(ctx, cart); err != nil {
		return nil, err
	}

	s.resolveItems(ctx, cart)

	return cart, nil
}

// RemoveItem deletes the line for productID. Removing a product that is not
// in the cart succeeds and returns the cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*models.Cart, error) {

	mu := cartLock(cartID)
	mu.Lock()
	defer mu.Unlock()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	delete(cart.Items, productID.String())

	if err := s.saveItems(ctx, cart); err != nil {
		return nil, err
	}

	s.resolveItems(ctx, cart)

	return cart, nil
}

// ClearCart empties the item collection in place. The cart record survives.
func (s *CartService) ClearCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {

	mu := cartLock(cartID)
	mu.Lock()
	defer mu.Unlock()

	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	cart.Items = make(map[string]models.CartItem)

	if err := s.saveItems(ctx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

func (s *CartService) loadCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {

	cart, err := s.cartRepo.GetCartByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, apperrors.StoreFailureError("Failed to retrieve cart").WithError(err)
	}

	return cart, nil
}

func (s *CartService) saveItems(ctx context.Context, cart *models.Cart) error {

	cart.UpdatedAt = time.Now()

	if err := s.cartRepo.UpdateCartItems(ctx, cart); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFoundError("Cart not found").WithError(err)
		}

		return apperrors.StoreFailureError("Failed to save cart").WithError(err)
	}

	return nil
}

// resolveItems attaches catalog products to cart lines for the response, a
// read-side join. Lines whose product cannot be resolved are returned bare.
func (s *CartService) resolveItems(ctx context.Context, cart *models.Cart) {

	for key, item := range cart.Items {

		if item.Product != nil {
			continue
		}

		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			continue
		}

		item.Product = product
		cart.Items[key] = item

	}
}
