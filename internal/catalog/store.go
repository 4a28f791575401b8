package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gildgarde/backend-boutique/internal/pricing"
)

// Product represents a storefront catalog entry.
type Product struct {
	ID          string        `json:"id"`
	Slug        string        `json:"slug"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Price       pricing.Money `json:"price"`
	Currency    string        `json:"currency"`
	Image       string        `json:"image,omitempty"`
	Category    string        `json:"category,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Store runs catalog queries against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, slug, title, description, price_minor, currency, image_url, category, created_at`

// ListProducts returns the newest products up to limit.
func (s *Store) ListProducts(ctx context.Context, limit int32) ([]Product, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// GetProductBySlug returns a single product. pgx.ErrNoRows when absent.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	return scanProduct(row)
}

// ListProductsBySlugs returns the products matching any of the given slugs.
func (s *Store) ListProductsBySlugs(ctx context.Context, slugs []string) ([]Product, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE slug = ANY($1)`, slugs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListRelatedByCategory returns other products sharing a category.
func (s *Store) ListRelatedByCategory(ctx context.Context, category, excludeSlug string, limit int32) ([]Product, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category = $1 AND slug <> $2
		ORDER BY created_at DESC
		LIMIT $3`, category, excludeSlug, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		id        pgtype.UUID
		desc      pgtype.Text
		image     pgtype.Text
		category  pgtype.Text
		createdAt pgtype.Timestamptz
		p         Product
	)
	if err := row.Scan(&id, &p.Slug, &p.Title, &desc, &p.Price, &p.Currency, &image, &category, &createdAt); err != nil {
		return Product{}, err
	}
	p.ID = uuid.UUID(id.Bytes).String()
	p.Description = desc.String
	p.Image = image.String
	p.Category = category.String
	p.CreatedAt = createdAt.Time
	return p, nil
}
