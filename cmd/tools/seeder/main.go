package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gildgarde/backend-boutique/internal/config"
	"github.com/gildgarde/backend-boutique/internal/pricing"
)

type seedProduct struct {
	Slug        string
	Title       string
	Description string
	Price       float64
	Currency    string
	Image       string
	Category    string
}

// Prices are written in major units for readability and converted to minor
// units on insert.
var products = []seedProduct{
	{"classic-leather-tote", "Classic Leather Tote", "Full-grain leather tote with a magnetic closure.", 149.00, "usd", "/images/classic-leather-tote.jpg", "bags"},
	{"linen-shirt-white", "White Linen Shirt", "Breathable linen shirt with mother-of-pearl buttons.", 69.00, "usd", "/images/linen-shirt-white.jpg", "shirts"},
	{"linen-shirt-navy", "Navy Linen Shirt", "Breathable linen shirt in deep navy.", 69.00, "usd", "/images/linen-shirt-navy.jpg", "shirts"},
	{"wool-overcoat", "Wool Overcoat", "Double-breasted overcoat in Italian wool.", 329.00, "usd", "/images/wool-overcoat.jpg", "outerwear"},
	{"suede-chelsea-boots", "Suede Chelsea Boots", "Goodyear-welted boots in sand suede.", 219.00, "usd", "/images/suede-chelsea-boots.jpg", "shoes"},
	{"canvas-sneakers", "Canvas Sneakers", "Low-top sneakers with natural rubber soles.", 79.00, "usd", "/images/canvas-sneakers.jpg", "shoes"},
	{"silk-scarf", "Silk Scarf", "Hand-rolled silk twill scarf.", 54.00, "usd", "/images/silk-scarf.jpg", "accessories"},
	{"leather-belt", "Leather Belt", "Vegetable-tanned belt with brass buckle.", 49.00, "usd", "/images/leather-belt.jpg", "accessories"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (slug, title, description, price_minor, currency, image_url, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (slug) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				price_minor = EXCLUDED.price_minor,
				currency = EXCLUDED.currency,
				image_url = EXCLUDED.image_url,
				category = EXCLUDED.category`,
			p.Slug, p.Title, p.Description, pricing.FromMajor(p.Price), p.Currency, p.Image, p.Category)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.Slug, err)
		}
	}
	log.Printf("seeded %d products", len(products))
}
