package repositories

import (
	"context"
	"database/sql"
	"errors"

	"vpsBack/internal/models"
)

type ProductRepository struct {
	DB *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{DB: db}
}

const productColumns = `id, title, description, price, discount, gain_time, present_time, COALESCE(apple_product_id, '')`

func (r *ProductRepository) GetByID(ctx context.Context, id int) (models.Product, error) {
	var p models.Product
	err := r.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id).Scan(
		&p.ID, &p.Title, &p.Description, &p.Price, &p.Discount, &p.GainTime, &p.PresentTime, &p.AppleProductID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, models.ErrProductNotFound
	}
	return p, err
}

func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Discount, &p.GainTime, &p.PresentTime, &p.AppleProductID); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
