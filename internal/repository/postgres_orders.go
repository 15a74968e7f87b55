package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront-system/internal/model"
)

const orderColumns = `id, number, user_id, user_name, product_id, product_name, product_category,
	amount, status, fulfillment_type, payment_method, delivered_code, rejection_reason,
	region_name, quantity_label, custom_input_value, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status, fulfillment, payment string
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.UserName, &o.ProductID, &o.ProductName,
		&o.ProductCategory, &o.AmountCents, &status, &fulfillment, &payment, &o.DeliveredCode,
		&o.RejectionReason, &o.RegionName, &o.QuantityLabel, &o.CustomInputValue, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	o.FulfillmentType = model.FulfillmentType(fulfillment)
	o.PaymentMethod = model.PaymentMethod(payment)
	return &o, nil
}

// PlaceOrderParams описывает параметры атомарного размещения заказа.
type PlaceOrderParams struct {
	Order          model.Order
	Debit          bool
	AttemptStock   bool
	RegionID       string
	DenominationID string
}

// PlaceOrder выполняет размещение заказа одной транзакцией: списание с
// кошелька с записью в журнал, попытка выдачи складского кода и вставка
// заказа. Любая неудача откатывает все шаги; расхождение баланса и
// заказа исключено. Отсутствие свободного кода не ошибка: заказ
// остаётся pending с исходным способом выдачи.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*model.Order, error) {
	var placed *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		o := params.Order

		if params.Debit {
			var balance int64
			err = tx.QueryRow(ctx,
				`SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
				o.UserID,
			).Scan(&balance)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrUserNotFound
				}
				return fmt.Errorf("lock user: %w", err)
			}

			if balance < o.AmountCents {
				return ErrInsufficientBalance
			}

			_, err = tx.Exec(ctx,
				`UPDATE users SET balance = balance - $2 WHERE id = $1`,
				o.UserID, o.AmountCents,
			)
			if err != nil {
				return fmt.Errorf("debit balance: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO transactions (id, user_id, title, amount, type, status, created_at)
				 VALUES ($1, $2, $3, $4, 'debit', 'completed', $5)`,
				uuid.NewString(), o.UserID, "Purchase: "+o.ProductName, o.AmountCents, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
		}

		if params.AttemptStock {
			stock, err := allocateStock(ctx, tx, o.ProductID, params.RegionID, params.DenominationID)
			if err != nil {
				return err
			}
			if stock != nil {
				o.Status = model.OrderStatusCompleted
				o.FulfillmentType = model.FulfillmentStock
				o.DeliveredCode = stock.Code
			}
		}

		row := tx.QueryRow(ctx,
			`INSERT INTO orders (id, number, user_id, user_name, product_id, product_name,
			                     product_category, amount, status, fulfillment_type, payment_method,
			                     delivered_code, rejection_reason, region_name, quantity_label,
			                     custom_input_value, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, '', $13, $14, $15, $16)
			 RETURNING `+orderColumns,
			o.ID, o.Number, o.UserID, o.UserName, o.ProductID, o.ProductName, o.ProductCategory,
			o.AmountCents, string(o.Status), string(o.FulfillmentType), string(o.PaymentMethod),
			o.DeliveredCode, o.RegionName, o.QuantityLabel, o.CustomInputValue, o.CreatedAt,
		)
		placed, err = scanOrder(row)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return placed, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return collectOrders(rows)
}

// ListOrders возвращает все заказы с необязательной фильтрацией по
// статусу и подстроке (имя товара, имя пользователя или номер заказа).
func (r *PostgresRepository) ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = '' OR product_name ILIKE '%' || $2 || '%'
		        OR user_name ILIKE '%' || $2 || '%'
		        OR number ILIKE '%' || $2 || '%')
		 ORDER BY created_at DESC`,
		string(status), search,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// CompleteOrder переводит pending-заказ в completed и сохраняет выданный код.
func (r *PostgresRepository) CompleteOrder(ctx context.Context, id, code string) (*model.Order, error) {
	var completed *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if model.OrderStatus(status) != model.OrderStatusPending {
			return ErrOrderNotPending
		}

		row := tx.QueryRow(ctx,
			`UPDATE orders SET status = 'completed', delivered_code = $2 WHERE id = $1
			 RETURNING `+orderColumns,
			id, code,
		)
		completed, err = scanOrder(row)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return completed, nil
}

// CancelOrder переводит pending-заказ в cancelled с указанием причины.
// Для заказов, оплаченных кошельком, сумма возвращается на баланс с
// записью в журнал в той же транзакции: возврат при отмене выполняется
// всегда.
func (r *PostgresRepository) CancelOrder(ctx context.Context, id, reason string) (*model.Order, error) {
	var cancelled *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
		order, err := scanOrder(row)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusPending {
			return ErrOrderNotPending
		}

		row = tx.QueryRow(ctx,
			`UPDATE orders SET status = 'cancelled', rejection_reason = $2 WHERE id = $1
			 RETURNING `+orderColumns,
			id, reason,
		)
		cancelled, err = scanOrder(row)
		if err != nil {
			return err
		}

		if order.PaymentMethod == model.PaymentWallet {
			_, err = tx.Exec(ctx,
				`UPDATE users SET balance = balance + $2 WHERE id = $1`,
				order.UserID, order.AmountCents,
			)
			if err != nil {
				return fmt.Errorf("refund balance: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO transactions (id, user_id, title, amount, type, status, created_at)
				 VALUES ($1, $2, $3, $4, 'credit', 'completed', $5)`,
				uuid.NewString(), order.UserID, "Refund: "+order.ProductName, order.AmountCents, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert refund transaction: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

// GetPendingAPIOrders возвращает pending-заказы с внешней выдачей для
// фонового обработчика.
func (r *PostgresRepository) GetPendingAPIOrders(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = 'pending' AND fulfillment_type = 'api'
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending api orders: %w", err)
	}
	return collectOrders(rows)
}

// CountOrdersByStatus возвращает количество заказов в каждом статусе и
// суммарную выручку по завершённым заказам в центах.
func (r *PostgresRepository) CountOrdersByStatus(ctx context.Context) (map[model.OrderStatus]int, int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)
		 FROM orders
		 GROUP BY status`,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.OrderStatus]int)
	var revenue int64
	for rows.Next() {
		var status string
		var count int
		var statusRevenue int64
		if err := rows.Scan(&status, &count, &statusRevenue); err != nil {
			return nil, 0, fmt.Errorf("scan order count: %w", err)
		}
		counts[model.OrderStatus(status)] = count
		revenue += statusRevenue
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return counts, revenue, nil
}
