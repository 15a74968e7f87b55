// Package currency реализует таблицу курсов валют и форматирование цен.
// Все суммы хранятся в центах USD; отображение выполняется по изменяемой
// таблице курсов, управляемой администратором.
package currency

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// Table хранит курсы валют к USD. Безопасна для конкурентного доступа.
type Table struct {
	mu    sync.RWMutex
	rates map[string]model.Currency
}

// NewTable создаёт таблицу с базовой валютой USD (курс 1:1).
func NewTable() *Table {
	return &Table{
		rates: map[string]model.Currency{
			"USD": {Code: "USD", Symbol: "$", Rate: 1},
		},
	}
}

// Load заменяет содержимое таблицы указанным набором валют.
// Базовая валюта USD сохраняется всегда.
func (t *Table) Load(currencies []model.Currency) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rates = map[string]model.Currency{
		"USD": {Code: "USD", Symbol: "$", Rate: 1},
	}
	for _, c := range currencies {
		if c.Code == "" || c.Rate <= 0 {
			continue
		}
		t.rates[c.Code] = c
	}
}

// Set добавляет или обновляет валюту в таблице.
func (t *Table) Set(c model.Currency) error {
	if c.Code == "" {
		return fmt.Errorf("currency code is empty")
	}
	if c.Rate <= 0 {
		return fmt.Errorf("currency rate must be positive, got %v", c.Rate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[c.Code] = c
	return nil
}

// Delete удаляет валюту из таблицы. Базовую валюту USD удалить нельзя.
func (t *Table) Delete(code string) error {
	if code == "USD" {
		return fmt.Errorf("base currency cannot be removed")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rates, code)
	return nil
}

// List возвращает все валюты таблицы.
func (t *Table) List() []model.Currency {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := make([]model.Currency, 0, len(t.rates))
	for _, c := range t.rates {
		res = append(res, c)
	}
	return res
}

// Format переводит сумму в центах USD в строку в указанной валюте:
// символ, пробел и сумма с группировкой разрядов и двумя знаками после
// запятой. Неизвестный код валюты трактуется как USD.
func (t *Table) Format(amountCents int64, code string) string {
	t.mu.RLock()
	c, ok := t.rates[code]
	if !ok {
		c = t.rates["USD"]
	}
	t.mu.RUnlock()

	converted := float64(amountCents) / 100 * c.Rate

	p := message.NewPrinter(language.AmericanEnglish)
	return p.Sprintf("%s %.2f", c.Symbol, converted)
}
