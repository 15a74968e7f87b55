package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ListProducts возвращает каталог товаров.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct создаёт товар каталога.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if p.FulfillmentType == "" {
		p.FulfillmentType = model.FulfillmentManual
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct обновляет товар каталога.
func (s *Service) UpdateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if p.ID == "" || p.Name == "" {
		return nil, fmt.Errorf("%w: product id and name are required", ErrValidation)
	}
	return s.repo.UpdateProduct(ctx, p)
}

// DeleteProduct удаляет товар каталога.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.DeleteProduct(ctx, id)
}

// ListInventory возвращает складские коды.
func (s *Service) ListInventory(ctx context.Context) ([]model.InventoryCode, error) {
	return s.repo.ListInventory(ctx)
}

// AddInventoryBatch добавляет партию кодов для товара. Коды приходят
// либо списком, либо сырым текстом по одному на строку; пустые строки
// пропускаются. Возвращает число добавленных кодов.
func (s *Service) AddInventoryBatch(ctx context.Context, productID, regionID, denominationID string, codes []string, rawText string) (int, error) {
	if productID == "" {
		return 0, fmt.Errorf("%w: product id is required", ErrValidation)
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return 0, err
	}

	all := make([]string, 0, len(codes))
	all = append(all, codes...)
	for _, line := range strings.Split(rawText, "\n") {
		all = append(all, strings.TrimSpace(line))
	}

	items := make([]model.InventoryCode, 0, len(all))
	for _, code := range all {
		if code == "" {
			continue
		}
		items = append(items, model.InventoryCode{
			ProductID:      productID,
			RegionID:       regionID,
			DenominationID: denominationID,
			Code:           code,
		})
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: no codes to add", ErrValidation)
	}

	return s.repo.AddInventoryBatch(ctx, items)
}

// DeleteInventoryCode удаляет неиспользованный складской код.
func (s *Service) DeleteInventoryCode(ctx context.Context, id string) error {
	return s.repo.DeleteInventoryCode(ctx, id)
}

// ListUsers возвращает всех пользователей для админки.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

// AdjustUserBalance изменяет баланс пользователя от имени
// администратора с записью в журнал операций.
func (s *Service) AdjustUserBalance(ctx context.Context, userID int64, deltaCents int64) (*model.User, error) {
	if deltaCents == 0 {
		return nil, fmt.Errorf("%w: amount must not be zero", ErrValidation)
	}
	title := "Balance top-up by admin"
	if deltaCents < 0 {
		title = "Balance deduction by admin"
	}
	return s.repo.AdjustBalance(ctx, userID, deltaCents, title)
}

// SetUserStatus переключает статус пользователя active/banned.
func (s *Service) SetUserStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	if status != model.UserStatusActive && status != model.UserStatusBanned {
		return fmt.Errorf("%w: unknown status", ErrValidation)
	}
	return s.repo.UpdateUserStatus(ctx, userID, status)
}

// ListCategories возвращает категории каталога.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory создаёт категорию.
func (s *Service) CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrValidation)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.repo.CreateCategory(ctx, c)
}

// DeleteCategory удаляет категорию.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}

// ListBanners возвращает баннеры главной страницы.
func (s *Service) ListBanners(ctx context.Context) ([]model.Banner, error) {
	return s.repo.ListBanners(ctx)
}

// CreateBanner создаёт баннер.
func (s *Service) CreateBanner(ctx context.Context, b *model.Banner) (*model.Banner, error) {
	if b.ImageURL == "" {
		return nil, fmt.Errorf("%w: banner image is required", ErrValidation)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return s.repo.CreateBanner(ctx, b)
}

// DeleteBanner удаляет баннер.
func (s *Service) DeleteBanner(ctx context.Context, id string) error {
	return s.repo.DeleteBanner(ctx, id)
}

// ListAnnouncements возвращает объявления.
func (s *Service) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	return s.repo.ListAnnouncements(ctx)
}

// CreateAnnouncement создаёт объявление.
func (s *Service) CreateAnnouncement(ctx context.Context, a *model.Announcement) (*model.Announcement, error) {
	if a.Text == "" {
		return nil, fmt.Errorf("%w: announcement text is required", ErrValidation)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.repo.CreateAnnouncement(ctx, a)
}

// DeleteAnnouncement удаляет объявление.
func (s *Service) DeleteAnnouncement(ctx context.Context, id string) error {
	return s.repo.DeleteAnnouncement(ctx, id)
}

// LoadCurrencies заполняет таблицу валют из хранилища при старте.
func (s *Service) LoadCurrencies(ctx context.Context) error {
	list, err := s.repo.ListCurrencies(ctx)
	if err != nil {
		return err
	}
	s.currencies.Load(list)
	return nil
}

// ListCurrencies возвращает текущие валюты отображения.
func (s *Service) ListCurrencies(_ context.Context) []model.Currency {
	return s.currencies.List()
}

// FormatPrice форматирует цену в указанной валюте отображения.
// Неизвестный код приводит к базовой валюте USD.
func (s *Service) FormatPrice(amountCents int64, code string) string {
	return s.currencies.Format(amountCents, code)
}

// UpsertCurrency сохраняет валюту в хранилище и в таблице курсов.
func (s *Service) UpsertCurrency(ctx context.Context, c model.Currency) error {
	if c.Code == "" || c.Rate <= 0 {
		return fmt.Errorf("%w: currency code and positive rate are required", ErrValidation)
	}
	c.Code = strings.ToUpper(c.Code)
	if err := s.repo.UpsertCurrency(ctx, c); err != nil {
		return err
	}
	return s.currencies.Set(c)
}

// DeleteCurrency удаляет валюту из хранилища и таблицы курсов.
func (s *Service) DeleteCurrency(ctx context.Context, code string) error {
	if err := s.repo.DeleteCurrency(ctx, code); err != nil {
		return err
	}
	return s.currencies.Delete(code)
}
