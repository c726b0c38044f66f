package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// orderStore — операции над заказами в staged-состоянии транзакции.
type orderStore struct {
	st *state
}

func (s *orderStore) InsertOrder(_ context.Context, order domain.Order) error {
	if _, exists := s.st.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	order.Items = nil
	s.st.orders[order.ID] = order
	return nil
}

func (s *orderStore) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, ok := s.st.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}

	items, err := s.ItemsForOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (s *orderStore) UpdateOrderTotal(_ context.Context, orderID string, totalMinor int64) error {
	order, ok := s.st.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	order.TotalMinor = totalMinor
	s.st.orders[orderID] = order
	return nil
}

func (s *orderStore) InsertItem(_ context.Context, item domain.OrderItem) error {
	if _, exists := s.st.items[item.ID]; exists {
		return fmt.Errorf("order item %s already exists", item.ID)
	}
	s.st.items[item.ID] = item
	return nil
}

func (s *orderStore) UpdateItem(_ context.Context, item domain.OrderItem) error {
	current, ok := s.st.items[item.ID]
	if !ok || current.OrderID != item.OrderID {
		return fmt.Errorf("order item %s: %w", item.ID, domain.ErrOrderItemNotFound)
	}
	s.st.items[item.ID] = item
	return nil
}

func (s *orderStore) DeleteItem(_ context.Context, orderID, itemID string) error {
	current, ok := s.st.items[itemID]
	if !ok || current.OrderID != orderID {
		return fmt.Errorf("order item %s: %w", itemID, domain.ErrOrderItemNotFound)
	}
	delete(s.st.items, itemID)
	return nil
}

func (s *orderStore) GetItem(_ context.Context, orderID, itemID string) (domain.OrderItem, error) {
	item, ok := s.st.items[itemID]
	if !ok || item.OrderID != orderID {
		return domain.OrderItem{}, fmt.Errorf("order item %s: %w", itemID, domain.ErrOrderItemNotFound)
	}
	return item, nil
}

func (s *orderStore) FindItemByProduct(_ context.Context, orderID, productID string) (domain.OrderItem, error) {
	for _, item := range s.st.items {
		if item.OrderID == orderID && item.ProductID == productID {
			return item, nil
		}
	}
	return domain.OrderItem{}, fmt.Errorf("product %s in order %s: %w", productID, orderID, domain.ErrOrderItemNotFound)
}

func (s *orderStore) ItemsForOrder(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0)
	for _, item := range s.st.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *orderStore) SumItemTotals(_ context.Context, orderID string) (int64, error) {
	var total int64
	for _, item := range s.st.items {
		if item.OrderID == orderID {
			total += item.TotalMinor
		}
	}
	return total, nil
}

var _ domain.OrderStore = (*orderStore)(nil)
