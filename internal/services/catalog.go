package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gostorefront/storefront-api/internal/cache"
	"github.com/gostorefront/storefront-api/internal/config"
	apperrors "github.com/gostorefront/storefront-api/internal/errors"
	"github.com/gostorefront/storefront-api/internal/models"
	repository "github.com/gostorefront/storefront-api/internal/repositories"
	"github.com/microcosm-cc/bluemonday"
)

// CatalogService owns product records. Cart and order logic reads from it
// to resolve prices; nothing in this service is modified by them.
type CatalogService struct {
	repo       repository.ProductRepository
	cache      cache.Cache
	sanitizer  *bluemonday.Policy
	productTTL time.Duration
}

func NewCatalogService(repo repository.ProductRepository, c cache.Cache, cfg *config.CacheConfig) *CatalogService {
	return &CatalogService{
		repo:       repo,
		cache:      c,
		sanitizer:  bluemonday.StrictPolicy(),
		productTTL: cfg.ProductTTL,
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {

	image := req.Image
	if image == "" {
		image = models.DefaultProductImage
	}

	product := &models.Product{
		ID:          uuid.New(),
		Name:        s.sanitizer.Sanitize(req.Name),
		Description: s.sanitizer.Sanitize(req.Description),
		Price:       req.Price,
		Image:       image,
		Category:    s.sanitizer.Sanitize(req.Category),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, apperrors.StoreFailureError("Failed to create product").WithError(err)
	}

	return product, nil
}

// UpdateProduct replaces the stored record and drops the cached copy, so
// the next read serves the new price.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error) {

	image := req.Image
	if image == "" {
		image = models.DefaultProductImage
	}

	product := &models.Product{
		ID:          id,
		Name:        s.sanitizer.Sanitize(req.Name),
		Description: s.sanitizer.Sanitize(req.Description),
		Price:       req.Price,
		Image:       image,
		Category:    s.sanitizer.Sanitize(req.Category),
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Product not found").WithError(err)
		}

		return nil, apperrors.StoreFailureError("Failed to update product").WithError(err)
	}

	s.invalidate(ctx, id)

	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFoundError("Product not found").WithError(err)
		}

		return apperrors.StoreFailureError("Failed to delete product").WithError(err)
	}

	s.invalidate(ctx, id)

	return nil
}

// invalidate drops the cached copy after a product write. A failed delete
// only means one stale TTL window, so it is logged and swallowed.
func (s *CatalogService) invalidate(ctx context.Context, id uuid.UUID) {

	key := cache.Key(cache.ProductKeyPrefix, id.String())

	if err := s.cache.Delete(ctx, key); err != nil {
		slog.Warn("Product cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// GetProduct serves from the cache when it can and falls back to the
// database. Cache failures degrade to a store read, never to a request
// failure.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {

	key := cache.Key(cache.ProductKeyPrefix, id.String())

	var cached models.Product

	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		slog.Warn("Product cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if hit {
		return &cached, nil
	}

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("Product not found").WithError(err)
		}

		return nil, apperrors.StoreFailureError("Failed to retrieve product").WithError(err)
	}

	if err := s.cache.Set(ctx, key, product, s.productTTL); err != nil {
		slog.Warn("Product cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, apperrors.StoreFailureError("Failed to list products").WithError(err)
	}

	return products, nil
}
