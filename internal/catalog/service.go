package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/gildgarde/backend-boutique/internal/common"
)

type queryProvider interface {
	ListProducts(ctx context.Context, limit int32) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListRelatedByCategory(ctx context.Context, category, excludeSlug string, limit int32) ([]Product, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultLimit int32
	relatedLimit int32
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultLimit int32
	RelatedLimit int32
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	relatedLimit := cfg.RelatedLimit
	if relatedLimit < 1 {
		relatedLimit = 4
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		relatedLimit: relatedLimit,
	}, nil
}

// ListProducts returns the storefront product listing, cached when possible.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	key := fmt.Sprintf("catalog:list:%d", s.defaultLimit)
	var cached []Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	products, err := s.queries.ListProducts(ctx, s.defaultLimit)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, products)
	return products, nil
}

// GetProduct returns the detail payload for a slug.
func (s *Service) GetProduct(ctx context.Context, slug string) (Product, error) {
	key := "catalog:product:" + slug
	var cached Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	product, err := s.queries.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Product{}, err
	}
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}

// ListRelated returns products that share a category with the given slug.
func (s *Service) ListRelated(ctx context.Context, slug string) ([]Product, error) {
	product, err := s.GetProduct(ctx, slug)
	if err != nil {
		return nil, err
	}
	if product.Category == "" {
		return []Product{}, nil
	}
	return s.queries.ListRelatedByCategory(ctx, product.Category, product.Slug, s.relatedLimit)
}
