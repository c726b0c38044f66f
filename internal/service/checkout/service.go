package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/metrics"
)

// Типы доменных событий, попадающих в transactional outbox.
const (
	EventOrderCreated    = "order.created"
	EventItemAdded       = "order.item_added"
	EventItemDecremented = "order.item_decremented"
	EventItemRemoved     = "order.item_removed"
	EventStockAdjusted   = "stock.adjusted"
)

// ItemRequest описывает запрошенную позицию при создании заказа или добавлении.
type ItemRequest struct {
	ProductID string
	Quantity  int32
	Note      string
}

// ItemChange — результат мутации позиции: сама позиция (пустая, если удалена),
// признак удаления и актуальная сумма заказа.
type ItemChange struct {
	Item       domain.OrderItem
	Removed    bool
	OrderTotal int64
}

// Service — координатор транзакций над заказами и складом. Каждая операция
// выполняется по схеме begin → мутации регистра и заказа → commit, с откатом
// всех эффектов при любой ошибке, включая бизнес-ошибки вроде нехватки стока.
type Service struct {
	uow      domain.UnitOfWork
	products domain.ProductReader
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
	retry    RetryConfig
}

// NewService создаёт рабочий экземпляр координатора.
func NewService(uow domain.UnitOfWork, products domain.ProductReader, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Service{
		uow:      uow,
		products: products,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
		retry:    DefaultRetryConfig(),
	}
}

// NewServiceWithoutMetrics создаёт координатор без метрик (для тестов).
func NewServiceWithoutMetrics(uow domain.UnitOfWork, products domain.ProductReader, logger *log.Entry) *Service {
	svc := NewService(uow, products, logger)
	svc.metrics = nil
	return svc
}

// WithRetryConfig переопределяет политику повторов.
func (s *Service) WithRetryConfig(cfg RetryConfig) *Service {
	if cfg.MaxAttempts > 0 {
		s.retry = cfg
	}
	return s
}

// CreateOrder открывает заказ и резервирует сток под каждую позицию. Ошибка любой
// позиции откатывает заказ целиком: ни частичного заказа, ни частичного списания.
func (s *Service) CreateOrder(ctx context.Context, tableRef, paymentMethod string, items []ItemRequest) (domain.Order, error) {
	if tableRef == "" {
		return domain.Order{}, domain.ErrTableRefRequired
	}
	if len(items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	var created domain.Order
	err := s.runTx(ctx, "create_order", func(tx domain.Tx) error {
		now := time.Now().UTC()
		order := domain.Order{
			ID:            uuid.NewString(),
			TableRef:      tableRef,
			PaymentMethod: paymentMethod,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Orders().InsertOrder(ctx, order); err != nil {
			return err
		}

		var expected int64
		for _, req := range items {
			delta, err := s.upsertItem(ctx, tx, order.ID, req, now)
			if err != nil {
				return err
			}
			expected += delta
		}

		total, err := s.settleOrderTotal(ctx, tx, order.ID, expected)
		if err != nil {
			return err
		}

		fresh, err := tx.Orders().GetOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		created = fresh

		return s.emitEvent(ctx, tx, "order", order.ID, EventOrderCreated, map[string]any{
			"table_ref":      tableRef,
			"payment_method": paymentMethod,
			"total_minor":    total,
			"items_count":    len(fresh.Items),
		})
	})
	if err != nil {
		return domain.Order{}, s.observeFailure("create_order", err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":    created.ID,
		"table_ref":   created.TableRef,
		"total_minor": created.TotalMinor,
	}).Info("order created")
	return created, nil
}

// AddItem добавляет позицию в заказ. Если товар уже есть в заказе, количество и
// сумма сливаются в существующую позицию, а не дублируются. Сток резервируется
// до записи позиции; при отказе заказ не меняется.
func (s *Service) AddItem(ctx context.Context, orderID, productID string, qty int32, note string) (ItemChange, error) {
	var result ItemChange
	err := s.runTx(ctx, "add_item", func(tx domain.Tx) error {
		order, err := tx.Orders().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		delta, err := s.upsertItem(ctx, tx, order.ID, ItemRequest{
			ProductID: productID,
			Quantity:  qty,
			Note:      note,
		}, now)
		if err != nil {
			return err
		}

		total, err := s.settleOrderTotal(ctx, tx, order.ID, order.TotalMinor+delta)
		if err != nil {
			return err
		}

		item, err := tx.Orders().FindItemByProduct(ctx, order.ID, productID)
		if err != nil {
			return err
		}
		result = ItemChange{Item: item, OrderTotal: total}

		return s.emitEvent(ctx, tx, "order", order.ID, EventItemAdded, map[string]any{
			"item_id":     item.ID,
			"product_id":  productID,
			"quantity":    qty,
			"total_minor": total,
		})
	})
	if err != nil {
		return ItemChange{}, s.observeFailure("add_item", err)
	}

	if s.metrics != nil {
		s.metrics.RecordItemAdded()
	}
	return result, nil
}

// DecrementItem уменьшает количество позиции на единицу, возвращая единицу на
// склад. Позиция с количеством 1 снимается целиком — поведение эквивалентно
// RemoveItem: тот же итоговый сток, то же отсутствие позиции.
func (s *Service) DecrementItem(ctx context.Context, orderID, itemID string) (ItemChange, error) {
	var result ItemChange
	err := s.runTx(ctx, "decrement_item", func(tx domain.Tx) error {
		order, err := tx.Orders().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		item, err := tx.Orders().GetItem(ctx, order.ID, itemID)
		if err != nil {
			return err
		}
		product, err := tx.Ledger().GetProductForUpdate(ctx, item.ProductID)
		if err != nil {
			return err
		}

		if item.Quantity <= 1 {
			return s.dropItem(ctx, tx, order, item, EventItemDecremented, &result)
		}

		if err := tx.Ledger().Release(ctx, product.ID, 1); err != nil {
			return err
		}
		item.Quantity--
		item.TotalMinor -= product.PriceMinor
		if item.TotalMinor < 0 {
			// Цена товара могла вырасти после продажи; сумма позиции не уходит в минус.
			item.TotalMinor = 0
		}
		if err := tx.Orders().UpdateItem(ctx, item); err != nil {
			return err
		}

		total, err := s.settleOrderTotal(ctx, tx, order.ID, -1)
		if err != nil {
			return err
		}
		result = ItemChange{Item: item, OrderTotal: total}

		return s.emitEvent(ctx, tx, "order", order.ID, EventItemDecremented, map[string]any{
			"item_id":     item.ID,
			"product_id":  item.ProductID,
			"quantity":    item.Quantity,
			"total_minor": total,
		})
	})
	if err != nil {
		return ItemChange{}, s.observeFailure("decrement_item", err)
	}

	if s.metrics != nil {
		s.metrics.RecordItemDecremented()
	}
	return result, nil
}

// RemoveItem снимает позицию целиком, возвращая весь её остаток на склад.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID string) (ItemChange, error) {
	var result ItemChange
	err := s.runTx(ctx, "remove_item", func(tx domain.Tx) error {
		order, err := tx.Orders().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		item, err := tx.Orders().GetItem(ctx, order.ID, itemID)
		if err != nil {
			return err
		}
		return s.dropItem(ctx, tx, order, item, EventItemRemoved, &result)
	})
	if err != nil {
		return ItemChange{}, s.observeFailure("remove_item", err)
	}

	if s.metrics != nil {
		s.metrics.RecordItemRemoved()
	}
	return result, nil
}

// GetOrder возвращает заказ с позициями; сумма сверяется с позициями при чтении.
func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.runTx(ctx, "get_order", func(tx domain.Tx) error {
		fresh, err := tx.Orders().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if fresh.ItemsTotal() != fresh.TotalMinor {
			return fmt.Errorf("order %s: %w", orderID, domain.ErrTotalMismatch)
		}
		order = fresh
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// SetStock — административная установка остатка (инвентаризация, приёмка).
func (s *Service) SetStock(ctx context.Context, productID string, stock int32) (domain.Product, error) {
	if stock < 0 {
		return domain.Product{}, fmt.Errorf("set stock %d for product %s: %w", stock, productID, domain.ErrInvalidQuantity)
	}

	var updated domain.Product
	err := s.runTx(ctx, "set_stock", func(tx domain.Tx) error {
		product, err := tx.Ledger().GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := tx.Ledger().SetStock(ctx, product.ID, stock); err != nil {
			return err
		}
		product.Stock = stock
		updated = product

		return s.emitEvent(ctx, tx, "product", product.ID, EventStockAdjusted, map[string]any{
			"product_id": product.ID,
			"stock":      stock,
		})
	})
	if err != nil {
		return domain.Product{}, s.observeFailure("set_stock", err)
	}

	if s.metrics != nil {
		s.metrics.RecordStockAdjusted()
	}
	s.logger.WithFields(log.Fields{
		"product_id": updated.ID,
		"stock":      stock,
	}).Info("stock adjusted")
	return updated, nil
}

// DecreaseStock — административное списание части остатка (порча, недостача).
// Списание больше доступного отклоняется так же, как продажа.
func (s *Service) DecreaseStock(ctx context.Context, productID string, qty int32) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, fmt.Errorf("decrease stock by %d for product %s: %w", qty, productID, domain.ErrInvalidQuantity)
	}

	var updated domain.Product
	err := s.runTx(ctx, "decrease_stock", func(tx domain.Tx) error {
		product, err := tx.Ledger().GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := tx.Ledger().Reserve(ctx, product.ID, qty); err != nil {
			return err
		}
		product.Stock -= qty
		updated = product

		return s.emitEvent(ctx, tx, "product", product.ID, EventStockAdjusted, map[string]any{
			"product_id":   product.ID,
			"decreased_by": qty,
			"stock":        product.Stock,
		})
	})
	if err != nil {
		return domain.Product{}, s.observeFailure("decrease_stock", err)
	}

	if s.metrics != nil {
		s.metrics.RecordStockAdjusted()
	}
	s.logger.WithFields(log.Fields{
		"product_id":   updated.ID,
		"decreased_by": qty,
		"stock":        updated.Stock,
	}).Info("stock decreased")
	return updated, nil
}

// ListStock возвращает каталог с текущими остатками.
func (s *Service) ListStock(ctx context.Context) ([]domain.Product, error) {
	return s.products.ListProducts(ctx)
}

// upsertItem резервирует сток и записывает позицию: слияние с существующей строкой
// (orderID, productID) либо вставка новой. Возвращает прирост суммы заказа.
// Цена берётся из каталога внутри транзакции — суммам клиента не доверяем.
func (s *Service) upsertItem(ctx context.Context, tx domain.Tx, orderID string, req ItemRequest, now time.Time) (int64, error) {
	if req.Quantity <= 0 {
		return 0, fmt.Errorf("product %s: %w", req.ProductID, domain.ErrInvalidQuantity)
	}

	product, err := tx.Ledger().GetProductForUpdate(ctx, req.ProductID)
	if err != nil {
		return 0, err
	}
	if err := tx.Ledger().Reserve(ctx, product.ID, req.Quantity); err != nil {
		return 0, err
	}

	delta := int64(req.Quantity) * product.PriceMinor

	existing, err := tx.Orders().FindItemByProduct(ctx, orderID, product.ID)
	switch {
	case err == nil:
		existing.Quantity += req.Quantity
		existing.TotalMinor += delta
		if req.Note != "" {
			existing.Note = req.Note
		}
		if err := tx.Orders().UpdateItem(ctx, existing); err != nil {
			return 0, err
		}
	case errors.Is(err, domain.ErrOrderItemNotFound):
		item := domain.OrderItem{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			ProductID:  product.ID,
			Quantity:   req.Quantity,
			TotalMinor: delta,
			Note:       req.Note,
			CreatedAt:  now,
		}
		if err := tx.Orders().InsertItem(ctx, item); err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	return delta, nil
}

// dropItem снимает позицию: полный возврат стока, удаление строки, пересчёт суммы.
func (s *Service) dropItem(ctx context.Context, tx domain.Tx, order domain.Order, item domain.OrderItem, eventType string, result *ItemChange) error {
	if err := tx.Ledger().Release(ctx, item.ProductID, item.Quantity); err != nil {
		return err
	}
	if err := tx.Orders().DeleteItem(ctx, order.ID, item.ID); err != nil {
		return err
	}

	total, err := s.settleOrderTotal(ctx, tx, order.ID, -1)
	if err != nil {
		return err
	}
	*result = ItemChange{Removed: true, OrderTotal: total}

	return s.emitEvent(ctx, tx, "order", order.ID, eventType, map[string]any{
		"item_id":     item.ID,
		"product_id":  item.ProductID,
		"released":    item.Quantity,
		"total_minor": total,
	})
}

// settleOrderTotal пересчитывает сумму заказа по сохранённым позициям и записывает её.
// expected >= 0 включает защитный инвариант: расхождение пересчёта с ожидаемой суммой
// означает внутреннюю ошибку и откатывает транзакцию.
func (s *Service) settleOrderTotal(ctx context.Context, tx domain.Tx, orderID string, expected int64) (int64, error) {
	total, err := tx.Orders().SumItemTotals(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if expected >= 0 && total != expected {
		return 0, fmt.Errorf("order %s: recomputed %d, expected %d: %w", orderID, total, expected, domain.ErrTotalMismatch)
	}
	if err := tx.Orders().UpdateOrderTotal(ctx, orderID, total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) emitEvent(ctx context.Context, tx domain.Tx, aggregateType, aggregateID, eventType string, payload map[string]any) error {
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return tx.EnqueueEvent(ctx, domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	})
}

// observeFailure логирует отказ операции и обновляет счётчики отказов.
func (s *Service) observeFailure(op string, err error) error {
	if errors.Is(err, domain.ErrInsufficientStock) && s.metrics != nil {
		s.metrics.RecordInsufficientStock()
	}

	entry := s.logger.WithError(err).WithField("op", op)
	switch {
	case domain.IsTransient(err):
		entry.Warn("operation failed with transient storage error")
	case domain.IsNotFound(err) || errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrInvalidQuantity):
		entry.Debug("operation rejected")
	default:
		entry.Error("operation failed")
	}
	return err
}
