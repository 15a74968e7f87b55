package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// MemoryRepository — хранилище в памяти с теми же контрактами, что и
// PostgresRepository. Используется при запуске без БД и в тестах.
// Все операции сериализуются одним мьютексом, поэтому чтение-и-пометка
// складского кода атомарны: два конкурентных заказа не получат один код.
type MemoryRepository struct {
	mu sync.Mutex

	nextUserID    int64
	users         map[int64]*model.User
	products      map[string]*model.Product
	inventory     []*model.InventoryCode
	orders        []*model.Order
	transactions  []model.Transaction
	categories    map[string]model.Category
	banners       map[string]model.Banner
	announcements map[string]model.Announcement
	currencies    map[string]model.Currency
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextUserID:    1,
		users:         make(map[int64]*model.User),
		products:      make(map[string]*model.Product),
		categories:    make(map[string]model.Category),
		banners:       make(map[string]model.Banner),
		announcements: make(map[string]model.Announcement),
		currencies:    make(map[string]model.Currency),
	}
}

// Close реализует контракт репозитория; освобождать нечего.
func (r *MemoryRepository) Close() error { return nil }

// CreateUser создаёт нового пользователя с нулевым балансом.
func (r *MemoryRepository) CreateUser(_ context.Context, name, email, phone string, passwordHash []byte) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email || (phone != "" && u.Phone == phone) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
	}

	u := &model.User{
		ID:           r.nextUserID,
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Status:       model.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	r.nextUserID++
	r.users[u.ID] = u

	cp := *u
	return &cp, nil
}

// GetUserByEmail возвращает пользователя по адресу почты.
func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// UserExists сообщает, занята ли указанная почта или телефон.
func (r *MemoryRepository) UserExists(_ context.Context, email, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email || (phone != "" && u.Phone == phone) {
			return true, nil
		}
	}
	return false, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (r *MemoryRepository) ListUsers(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		res = append(res, *u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateUserStatus переключает состояние учётной записи.
func (r *MemoryRepository) UpdateUserStatus(_ context.Context, id int64, status model.UserStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Status = status
	return nil
}

// UpdateUserProfile обновляет имя и телефон пользователя.
func (r *MemoryRepository) UpdateUserProfile(_ context.Context, id int64, name, phone string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Name = name
	u.Phone = phone
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) appendTransactionLocked(userID int64, title string, amountCents int64, txType model.TransactionType) {
	r.transactions = append(r.transactions, model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		AmountCents: amountCents,
		Type:        txType,
		Status:      "completed",
		CreatedAt:   time.Now().UTC(),
	})
}

// AdjustBalance изменяет баланс пользователя и добавляет запись в журнал
// под общим мьютексом.
func (r *MemoryRepository) AdjustBalance(_ context.Context, userID int64, deltaCents int64, title string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if u.BalanceCents+deltaCents < 0 {
		return nil, ErrInsufficientBalance
	}
	u.BalanceCents += deltaCents

	txType := model.TransactionCredit
	amount := deltaCents
	if deltaCents < 0 {
		txType = model.TransactionDebit
		amount = -deltaCents
	}
	r.appendTransactionLocked(userID, title, amount, txType)

	cp := *u
	return &cp, nil
}

// GetTransactionsByUser возвращает журнал операций пользователя, новые первыми.
func (r *MemoryRepository) GetTransactionsByUser(_ context.Context, userID int64) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Transaction
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].UserID == userID {
			res = append(res, r.transactions[i])
		}
	}
	return res, nil
}

// CreateProduct сохраняет новый товар каталога.
func (r *MemoryRepository) CreateProduct(_ context.Context, p *model.Product) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	r.products[p.ID] = &cp

	res := cp
	return &res, nil
}

// UpdateProduct обновляет товар каталога.
func (r *MemoryRepository) UpdateProduct(_ context.Context, p *model.Product) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[p.ID]
	if !ok {
		return nil, ErrProductNotFound
	}
	p.CreatedAt = existing.CreatedAt
	cp := *p
	r.products[p.ID] = &cp

	res := cp
	return &res, nil
}

// DeleteProduct удаляет товар вместе с его складскими кодами.
func (r *MemoryRepository) DeleteProduct(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(r.products, id)

	kept := r.inventory[:0]
	for _, ic := range r.inventory {
		if ic.ProductID != id {
			kept = append(kept, ic)
		}
	}
	r.inventory = kept
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *MemoryRepository) GetProduct(_ context.Context, id string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProducts возвращает все товары каталога в порядке добавления.
func (r *MemoryRepository) ListProducts(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		res = append(res, *p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// ListInventory возвращает все складские коды, новые первыми.
func (r *MemoryRepository) ListInventory(_ context.Context) ([]model.InventoryCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.InventoryCode, 0, len(r.inventory))
	for i := len(r.inventory) - 1; i >= 0; i-- {
		res = append(res, *r.inventory[i])
	}
	return res, nil
}

// AddInventoryBatch сохраняет пакет складских кодов.
func (r *MemoryRepository) AddInventoryBatch(_ context.Context, items []model.InventoryCode) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, item := range items {
		if item.Code == "" {
			continue
		}
		ic := item
		if ic.ID == "" {
			ic.ID = uuid.NewString()
		}
		ic.IsUsed = false
		ic.CreatedAt = time.Now().UTC()
		r.inventory = append(r.inventory, &ic)
		added++
	}
	return added, nil
}

// DeleteInventoryCode удаляет складской код. Выданные коды не удаляются.
func (r *MemoryRepository) DeleteInventoryCode(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, ic := range r.inventory {
		if ic.ID == id {
			if ic.IsUsed {
				return ErrCodeUsed
			}
			r.inventory = append(r.inventory[:i], r.inventory[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// matchStockLocked реализует правило сопоставления склада: пустое поле
// кода подходит под любой запрос, заполненное — только под точное
// совпадение. Первый свободный код в порядке добавления выигрывает.
func (r *MemoryRepository) matchStockLocked(productID, regionID, denominationID string) *model.InventoryCode {
	for _, ic := range r.inventory {
		if ic.ProductID != productID || ic.IsUsed {
			continue
		}
		if ic.RegionID != "" && ic.RegionID != regionID {
			continue
		}
		if ic.DenominationID != "" && ic.DenominationID != denominationID {
			continue
		}
		return ic
	}
	return nil
}

// PlaceOrder выполняет размещение заказа атомарно под общим мьютексом:
// списание, выдача кода и вставка заказа либо происходят целиком, либо
// не происходят вовсе.
func (r *MemoryRepository) PlaceOrder(_ context.Context, params PlaceOrderParams) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := params.Order

	if params.Debit {
		u, ok := r.users[o.UserID]
		if !ok {
			return nil, ErrUserNotFound
		}
		if u.BalanceCents < o.AmountCents {
			return nil, ErrInsufficientBalance
		}
		u.BalanceCents -= o.AmountCents
		r.appendTransactionLocked(o.UserID, "Purchase: "+o.ProductName, o.AmountCents, model.TransactionDebit)
	}

	if params.AttemptStock {
		if stock := r.matchStockLocked(o.ProductID, params.RegionID, params.DenominationID); stock != nil {
			stock.IsUsed = true
			o.Status = model.OrderStatusCompleted
			o.FulfillmentType = model.FulfillmentStock
			o.DeliveredCode = stock.Code
		}
	}

	cp := o
	r.orders = append(r.orders, &cp)

	res := cp
	return &res, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *MemoryRepository) GetOrdersByUser(_ context.Context, userID int64) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Order
	for i := len(r.orders) - 1; i >= 0; i-- {
		if r.orders[i].UserID == userID {
			res = append(res, *r.orders[i])
		}
	}
	return res, nil
}

// ListOrders возвращает все заказы с фильтрацией по статусу и подстроке.
func (r *MemoryRepository) ListOrders(_ context.Context, status model.OrderStatus, search string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(search)

	var res []model.Order
	for i := len(r.orders) - 1; i >= 0; i-- {
		o := r.orders[i]
		if status != "" && o.Status != status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(o.ProductName), needle) &&
			!strings.Contains(strings.ToLower(o.UserName), needle) &&
			!strings.Contains(strings.ToLower(o.Number), needle) {
			continue
		}
		res = append(res, *o)
	}
	return res, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrder(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.findOrderLocked(id)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryRepository) findOrderLocked(id string) *model.Order {
	for _, o := range r.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// CompleteOrder переводит pending-заказ в completed и сохраняет выданный код.
func (r *MemoryRepository) CompleteOrder(_ context.Context, id, code string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.findOrderLocked(id)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != model.OrderStatusPending {
		return nil, ErrOrderNotPending
	}
	o.Status = model.OrderStatusCompleted
	o.DeliveredCode = code

	cp := *o
	return &cp, nil
}

// CancelOrder переводит pending-заказ в cancelled; оплата кошельком
// возвращается на баланс всегда.
func (r *MemoryRepository) CancelOrder(_ context.Context, id, reason string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.findOrderLocked(id)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != model.OrderStatusPending {
		return nil, ErrOrderNotPending
	}
	o.Status = model.OrderStatusCancelled
	o.RejectionReason = reason

	if o.PaymentMethod == model.PaymentWallet {
		if u, ok := r.users[o.UserID]; ok {
			u.BalanceCents += o.AmountCents
			r.appendTransactionLocked(o.UserID, "Refund: "+o.ProductName, o.AmountCents, model.TransactionCredit)
		}
	}

	cp := *o
	return &cp, nil
}

// GetPendingAPIOrders возвращает pending-заказы с внешней выдачей.
func (r *MemoryRepository) GetPendingAPIOrders(_ context.Context, limit int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Order
	for _, o := range r.orders {
		if o.Status == model.OrderStatusPending && o.FulfillmentType == model.FulfillmentAPI {
			res = append(res, *o)
			if len(res) == limit {
				break
			}
		}
	}
	return res, nil
}

// CountOrdersByStatus возвращает число заказов по статусам и выручку
// по завершённым заказам в центах.
func (r *MemoryRepository) CountOrdersByStatus(_ context.Context) (map[model.OrderStatus]int, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[model.OrderStatus]int)
	var revenue int64
	for _, o := range r.orders {
		counts[o.Status]++
		if o.Status == model.OrderStatusCompleted {
			revenue += o.AmountCents
		}
	}
	return counts, revenue, nil
}

// ListCategories возвращает все категории каталога.
func (r *MemoryRepository) ListCategories(_ context.Context) ([]model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// CreateCategory сохраняет новую категорию.
func (r *MemoryRepository) CreateCategory(_ context.Context, c *model.Category) (*model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.categories[c.ID] = *c
	return c, nil
}

// DeleteCategory удаляет категорию.
func (r *MemoryRepository) DeleteCategory(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return ErrNotFound
	}
	delete(r.categories, id)
	return nil
}

// ListBanners возвращает все баннеры.
func (r *MemoryRepository) ListBanners(_ context.Context) ([]model.Banner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Banner, 0, len(r.banners))
	for _, b := range r.banners {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CreateBanner сохраняет новый баннер.
func (r *MemoryRepository) CreateBanner(_ context.Context, b *model.Banner) (*model.Banner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.banners[b.ID] = *b
	return b, nil
}

// DeleteBanner удаляет баннер.
func (r *MemoryRepository) DeleteBanner(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.banners[id]; !ok {
		return ErrNotFound
	}
	delete(r.banners, id)
	return nil
}

// ListAnnouncements возвращает все объявления.
func (r *MemoryRepository) ListAnnouncements(_ context.Context) ([]model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Announcement, 0, len(r.announcements))
	for _, a := range r.announcements {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CreateAnnouncement сохраняет новое объявление.
func (r *MemoryRepository) CreateAnnouncement(_ context.Context, a *model.Announcement) (*model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.announcements[a.ID] = *a
	return a, nil
}

// DeleteAnnouncement удаляет объявление.
func (r *MemoryRepository) DeleteAnnouncement(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.announcements[id]; !ok {
		return ErrNotFound
	}
	delete(r.announcements, id)
	return nil
}

// ListCurrencies возвращает все валюты отображения.
func (r *MemoryRepository) ListCurrencies(_ context.Context) ([]model.Currency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Code < res[j].Code })
	return res, nil
}

// UpsertCurrency добавляет валюту или обновляет её курс.
func (r *MemoryRepository) UpsertCurrency(_ context.Context, c model.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currencies[c.Code] = c
	return nil
}

// DeleteCurrency удаляет валюту.
func (r *MemoryRepository) DeleteCurrency(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.currencies[code]; !ok {
		return ErrNotFound
	}
	delete(r.currencies, code)
	return nil
}
