// Package dedup реализует защиту от повторного исполнения покупок по
// заголовку Idempotency-Key. Хранилище ключей — Redis; без настроенного
// Redis защита отключена и все запросы считаются первыми.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyTTL = 24 * time.Hour

// Guard проверяет и регистрирует ключи идемпотентности.
type Guard struct {
	client *redis.Client
}

// NewGuard создаёт защиту на указанном адресе Redis. Пустой адрес
// означает отключённую защиту.
func NewGuard(addr string) *Guard {
	if addr == "" {
		return &Guard{}
	}
	return &Guard{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Enabled сообщает, настроена ли защита.
func (g *Guard) Enabled() bool {
	return g != nil && g.client != nil
}

// FirstUse атомарно регистрирует ключ и возвращает true, если ключ
// встречен впервые. При отключённой защите всегда true.
func (g *Guard) FirstUse(ctx context.Context, userID int64, key string) (bool, error) {
	if !g.Enabled() || key == "" {
		return true, nil
	}

	redisKey := fmt.Sprintf("dedup:checkout:%d:%s", userID, key)
	ok, err := g.client.SetNX(ctx, redisKey, "1", keyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx dedup key: %w", err)
	}
	return ok, nil
}

// Close закрывает соединение с Redis.
func (g *Guard) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}
