package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/storefront-system/internal/model"
)

const userColumns = `id, name, email, phone, password_hash, balance, status, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var status string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.BalanceCents, &status, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Status = model.UserStatus(status)
	return &u, nil
}

// CreateUser создаёт нового пользователя с нулевым балансом.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email, phone string, passwordHash []byte) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, phone, password_hash) VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		name, email, phone, passwordHash,
	)

	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по адресу почты.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

// UserExists сообщает, занята ли указанная почта или телефон.
func (r *PostgresRepository) UserExists(ctx context.Context, email, phone string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM users WHERE email = $1 OR ($2 <> '' AND phone = $2)
		 )`,
		email, phone,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateUserStatus переключает состояние учётной записи (active/banned).
func (r *PostgresRepository) UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserProfile обновляет имя и телефон пользователя.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id int64, name, phone string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, phone = $3 WHERE id = $1 RETURNING `+userColumns,
		id, name, phone,
	)
	return scanUser(row)
}

// AdjustBalance изменяет баланс пользователя на deltaCents и добавляет
// запись в журнал операций в той же транзакции. Строка пользователя
// блокируется для сериализации конкурентных изменений; уход баланса в
// минус отклоняется.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, userID int64, deltaCents int64, title string) (*model.User, error) {
	var updated *model.User

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var balance int64
		err = tx.QueryRow(ctx,
			`SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if balance+deltaCents < 0 {
			return ErrInsufficientBalance
		}

		row := tx.QueryRow(ctx,
			`UPDATE users SET balance = balance + $2 WHERE id = $1 RETURNING `+userColumns,
			userID, deltaCents,
		)
		updated, err = scanUser(row)
		if err != nil {
			return err
		}

		txType := model.TransactionCredit
		amount := deltaCents
		if deltaCents < 0 {
			txType = model.TransactionDebit
			amount = -deltaCents
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (id, user_id, title, amount, type, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, 'completed', $6)`,
			uuid.NewString(), userID, title, amount, string(txType), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// GetTransactionsByUser возвращает журнал операций пользователя, новые первыми.
func (r *PostgresRepository) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, amount, type, status, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.AmountCents, &txType, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = model.TransactionType(txType)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
