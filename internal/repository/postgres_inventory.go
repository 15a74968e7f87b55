package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ListInventory возвращает все складские коды, новые первыми.
func (r *PostgresRepository) ListInventory(ctx context.Context) ([]model.InventoryCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, region_id, denomination_id, code, is_used, created_at
		 FROM inventory
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}
	defer rows.Close()

	var res []model.InventoryCode
	for rows.Next() {
		var ic model.InventoryCode
		if err := rows.Scan(&ic.ID, &ic.ProductID, &ic.RegionID, &ic.DenominationID, &ic.Code, &ic.IsUsed, &ic.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory code: %w", err)
		}
		res = append(res, ic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddInventoryBatch сохраняет пакет складских кодов одной транзакцией.
func (r *PostgresRepository) AddInventoryBatch(ctx context.Context, items []model.InventoryCode) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	added := 0
	for _, item := range items {
		if item.Code == "" {
			continue
		}
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO inventory (id, product_id, region_id, denomination_id, code)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, item.ProductID, item.RegionID, item.DenominationID, item.Code,
		)
		if err != nil {
			return 0, fmt.Errorf("insert inventory code: %w", err)
		}
		added++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return added, nil
}

// DeleteInventoryCode удаляет складской код. Выданные коды не удаляются.
func (r *PostgresRepository) DeleteInventoryCode(ctx context.Context, id string) error {
	var isUsed bool
	err := r.pool.QueryRow(ctx, `SELECT is_used FROM inventory WHERE id = $1`, id).Scan(&isUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select inventory code: %w", err)
	}
	if isUsed {
		return ErrCodeUsed
	}

	_, err = r.pool.Exec(ctx, `DELETE FROM inventory WHERE id = $1 AND is_used = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete inventory code: %w", err)
	}
	return nil
}

// allocateStock находит и помечает выданным один свободный код внутри
// транзакции tx. Правило сопоставления: пустое поле кода подходит под
// любой запрос, заполненное — только под точное совпадение. Первый код
// в порядке добавления выигрывает; FOR UPDATE SKIP LOCKED исключает
// выдачу одного кода двум конкурентным покупкам.
func allocateStock(ctx context.Context, tx pgx.Tx, productID, regionID, denominationID string) (*model.InventoryCode, error) {
	row := tx.QueryRow(ctx,
		`SELECT id, product_id, region_id, denomination_id, code
		 FROM inventory
		 WHERE product_id = $1
		   AND is_used = FALSE
		   AND (region_id = '' OR region_id = $2)
		   AND (denomination_id = '' OR denomination_id = $3)
		 ORDER BY created_at, id
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		productID, regionID, denominationID,
	)

	var ic model.InventoryCode
	err := row.Scan(&ic.ID, &ic.ProductID, &ic.RegionID, &ic.DenominationID, &ic.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select stock candidate: %w", err)
	}

	cmdTag, err := tx.Exec(ctx,
		`UPDATE inventory SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`,
		ic.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark stock used: %w", err)
	}
	if cmdTag.RowsAffected() != 1 {
		return nil, nil
	}

	ic.IsUsed = true
	return &ic, nil
}
