// Package cart реализует корзины покупателей в памяти сессии.
// Корзина не персистентна: содержимое живёт до выхода пользователя
// или перезапуска сервиса.
package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ErrItemNotFound возвращается при удалении отсутствующей позиции.
var ErrItemNotFound = errors.New("cart item not found")

// Store хранит корзины пользователей и отложенные позиции гостей.
// У гостя ровно один слот отложенной позиции: повторное добавление до
// входа замещает предыдущее, после входа позиция доигрывается в корзину.
type Store struct {
	mu      sync.Mutex
	carts   map[int64][]model.CartItem
	pending map[string]model.CartItem // ключ — идентификатор гостевой сессии
}

// NewStore создаёт пустое хранилище корзин.
func NewStore() *Store {
	return &Store{
		carts:   make(map[int64][]model.CartItem),
		pending: make(map[string]model.CartItem),
	}
}

// Add добавляет позицию в корзину пользователя и возвращает её копию
// с заполненным идентификатором.
func (s *Store) Add(userID int64, item model.CartItem) model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.AddedAt = time.Now().UTC()
	s.carts[userID] = append(s.carts[userID], item)
	return item
}

// Remove удаляет позицию из корзины пользователя.
func (s *Store) Remove(userID int64, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	for i, it := range items {
		if it.ID == itemID {
			s.carts[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// Items возвращает копию содержимого корзины пользователя.
func (s *Store) Items(userID int64) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	res := make([]model.CartItem, len(items))
	copy(res, items)
	return res
}

// Total возвращает сумму корзины в центах.
func (s *Store) Total(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, it := range s.carts[userID] {
		sum += it.PriceCents
	}
	return sum
}

// Clear очищает корзину пользователя.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
}

// RemoveMany удаляет из корзины перечисленные позиции.
func (s *Store) RemoveMany(userID int64, itemIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = true
	}

	items := s.carts[userID]
	kept := items[:0]
	for _, it := range items {
		if !drop[it.ID] {
			kept = append(kept, it)
		}
	}
	s.carts[userID] = kept
}

// StashPending запоминает позицию гостя до входа. Слот один: новое
// добавление замещает предыдущее.
func (s *Store) StashPending(sessionID string, item model.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.AddedAt = time.Now().UTC()
	s.pending[sessionID] = item
}

// ReplayPending переносит отложенную позицию гостя в корзину вошедшего
// пользователя. Возвращает позицию и признак того, что она была.
func (s *Store) ReplayPending(sessionID string, userID int64) (model.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.pending[sessionID]
	if !ok {
		return model.CartItem{}, false
	}
	delete(s.pending, sessionID)
	s.carts[userID] = append(s.carts[userID], item)
	return item, true
}

// DropPending удаляет отложенную позицию гостя, если она есть.
func (s *Store) DropPending(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, sessionID)
}
