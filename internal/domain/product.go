package domain

import "time"

// Product описывает товар каталога с текущим складским остатком.
type Product struct {
	ID string
	// Name — отображаемое имя товара.
	Name string
	// PriceMinor — цена за единицу в минимальных денежных единицах (центы/копейки).
	PriceMinor int64
	// Stock — остаток на складе; инвариант: >= 0 во всех закоммиченных состояниях.
	Stock int32
	// CategoryID — ссылка на категорию; пустая строка означает "без категории".
	// Товар ссылается на категорию, но не владеет ею.
	CategoryID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
