package domain

import "time"

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// OrderID — заказ-владелец; позиция живёт и умирает вместе с ним.
	OrderID string
	// ProductID — товар, проданный этой позицией. Товар не принадлежит позиции:
	// удаление товара не должно стирать историю продаж.
	ProductID string
	// Quantity — количество единиц; всегда > 0, позиция с нулём удаляется.
	Quantity int32
	// TotalMinor — сумма позиции (qty × цена на момент продажи) в минимальных единицах.
	TotalMinor int64
	// Note — опциональный комментарий кухне ("без лука").
	Note      string
	CreatedAt time.Time
}

// Order агрегирует заказ (comanda): открытый счёт стола или клиента и его позиции.
type Order struct {
	ID string
	// TableRef — номер стола или ссылка на клиента.
	TableRef string
	// PaymentMethod — способ оплаты, заявленный при открытии.
	PaymentMethod string
	// TotalMinor — сумма заказа; инвариант: равна сумме TotalMinor всех позиций
	// на каждой границе коммита.
	TotalMinor int64
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ItemsTotal возвращает сумму всех позиций заказа.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.TotalMinor
	}
	return total
}

// FindItemByProduct возвращает позицию по товару, если она уже есть в заказе.
func (o *Order) FindItemByProduct(productID string) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// ValidateInvariants проверяет инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.TableRef == "" {
		errs = append(errs, ErrTableRefRequired)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if item.TotalMinor < 0 {
			errs = append(errs, ErrPriceNegative)
		}
	}
	if o.ItemsTotal() != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
