package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ListCategories возвращает все категории каталога.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// CreateCategory сохраняет новую категорию.
func (r *PostgresRepository) CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO categories (id, name, icon) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.Icon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// DeleteCategory удаляет категорию.
func (r *PostgresRepository) DeleteCategory(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBanners возвращает все баннеры.
func (r *PostgresRepository) ListBanners(ctx context.Context) ([]model.Banner, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, image_url, link FROM banners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select banners: %w", err)
	}
	defer rows.Close()

	var res []model.Banner
	for rows.Next() {
		var b model.Banner
		if err := rows.Scan(&b.ID, &b.ImageURL, &b.Link); err != nil {
			return nil, fmt.Errorf("scan banner: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// CreateBanner сохраняет новый баннер.
func (r *PostgresRepository) CreateBanner(ctx context.Context, b *model.Banner) (*model.Banner, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO banners (id, image_url, link) VALUES ($1, $2, $3)`,
		b.ID, b.ImageURL, b.Link,
	)
	if err != nil {
		return nil, fmt.Errorf("insert banner: %w", err)
	}
	return b, nil
}

// DeleteBanner удаляет баннер.
func (r *PostgresRepository) DeleteBanner(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM banners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete banner: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAnnouncements возвращает все объявления.
func (r *PostgresRepository) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, text, is_active FROM announcements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select announcements: %w", err)
	}
	defer rows.Close()

	var res []model.Announcement
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.Text, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CreateAnnouncement сохраняет новое объявление.
func (r *PostgresRepository) CreateAnnouncement(ctx context.Context, a *model.Announcement) (*model.Announcement, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO announcements (id, text, is_active) VALUES ($1, $2, $3)`,
		a.ID, a.Text, a.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert announcement: %w", err)
	}
	return a, nil
}

// DeleteAnnouncement удаляет объявление.
func (r *PostgresRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCurrencies возвращает все валюты отображения.
func (r *PostgresRepository) ListCurrencies(ctx context.Context) ([]model.Currency, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, symbol, rate FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("select currencies: %w", err)
	}
	defer rows.Close()

	var res []model.Currency
	for rows.Next() {
		var c model.Currency
		if err := rows.Scan(&c.Code, &c.Symbol, &c.Rate); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpsertCurrency добавляет валюту или обновляет её курс.
func (r *PostgresRepository) UpsertCurrency(ctx context.Context, c model.Currency) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO currencies (code, symbol, rate) VALUES ($1, $2, $3)
		 ON CONFLICT (code) DO UPDATE SET symbol = EXCLUDED.symbol, rate = EXCLUDED.rate`,
		c.Code, c.Symbol, c.Rate,
	)
	if err != nil {
		return fmt.Errorf("upsert currency: %w", err)
	}
	return nil
}

// DeleteCurrency удаляет валюту.
func (r *PostgresRepository) DeleteCurrency(ctx context.Context, code string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM currencies WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete currency: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
