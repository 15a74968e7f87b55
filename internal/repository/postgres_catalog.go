package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront-system/internal/model"
)

const productColumns = `id, name, category, price, regions, denominations, custom_input,
	fulfillment_type, auto_deliver_stock, image_url, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var regions, denominations, customInput []byte
	var fulfillment string

	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &regions, &denominations,
		&customInput, &fulfillment, &p.AutoDeliverStock, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	p.FulfillmentType = model.FulfillmentType(fulfillment)
	if len(regions) > 0 {
		if err := json.Unmarshal(regions, &p.Regions); err != nil {
			return nil, fmt.Errorf("unmarshal regions: %w", err)
		}
	}
	if len(denominations) > 0 {
		if err := json.Unmarshal(denominations, &p.Denominations); err != nil {
			return nil, fmt.Errorf("unmarshal denominations: %w", err)
		}
	}
	if len(customInput) > 0 {
		if err := json.Unmarshal(customInput, &p.CustomInput); err != nil {
			return nil, fmt.Errorf("unmarshal custom input: %w", err)
		}
	}

	return &p, nil
}

func marshalProductFields(p *model.Product) (regions, denominations, customInput []byte, err error) {
	if p.Regions != nil {
		if regions, err = json.Marshal(p.Regions); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal regions: %w", err)
		}
	}
	if p.Denominations != nil {
		if denominations, err = json.Marshal(p.Denominations); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal denominations: %w", err)
		}
	}
	if p.CustomInput != nil {
		if customInput, err = json.Marshal(p.CustomInput); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal custom input: %w", err)
		}
	}
	return regions, denominations, customInput, nil
}

// CreateProduct сохраняет новый товар каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	regions, denominations, customInput, err := marshalProductFields(p)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO products (id, name, category, price, regions, denominations, custom_input,
		                       fulfillment_type, auto_deliver_stock, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.PriceCents, regions, denominations, customInput,
		string(p.FulfillmentType), p.AutoDeliverStock, p.ImageURL,
	)
	return scanProduct(row)
}

// UpdateProduct обновляет товар каталога.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	regions, denominations, customInput, err := marshalProductFields(p)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, category = $3, price = $4, regions = $5, denominations = $6,
		     custom_input = $7, fulfillment_type = $8, auto_deliver_stock = $9, image_url = $10
		 WHERE id = $1
		 RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.PriceCents, regions, denominations, customInput,
		string(p.FulfillmentType), p.AutoDeliverStock, p.ImageURL,
	)
	return scanProduct(row)
}

// DeleteProduct удаляет товар вместе со складскими кодами (каскадно).
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id,
	)
	return scanProduct(row)
}

// ListProducts возвращает все товары каталога.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
