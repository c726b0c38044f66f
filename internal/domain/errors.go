package domain

import "errors"

var (
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ (comanda) не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderItemNotFound возвращается, если позиция заказа отсутствует.
	ErrOrderItemNotFound = errors.New("order item not found")
	// ErrInsufficientStock — запрошенное количество превышает остаток на складе.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity — некорректное количество или остаток (qty <= 0, сток < 0).
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrStorageTransient — временная ошибка хранилища (lock timeout, serialization
	// failure, потеря соединения); операцию безопасно повторить.
	ErrStorageTransient = errors.New("transient storage failure")
	// ErrTotalMismatch — защитный инвариант: сумма заказа разошлась с суммой позиций.
	// В корректной работе не возникает, но обязан быть обнаружим.
	ErrTotalMismatch = errors.New("order total does not match items sum")
	// ErrTableRefRequired — у заказа должен быть указан стол/клиент.
	ErrTableRefRequired = errors.New("table reference is required")
	// ErrItemsRequired — заказ создаётся минимум с одной позицией.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// ErrProductNameRequired — у товара должно быть имя.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrPriceNegative — цена товара не может быть отрицательной.
	ErrPriceNegative = errors.New("product price must be non-negative")
	// ErrStockNegative — остаток товара не может быть отрицательным.
	ErrStockNegative = errors.New("product stock must be non-negative")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к классу "сущность отсутствует".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderItemNotFound)
}

// IsTransient проверяет, является ли ошибка временной и подлежит ли retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageTransient)
}
