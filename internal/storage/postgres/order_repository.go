package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// orderStore — PostgreSQL-реализация OrderStore внутри транзакции.
type orderStore struct {
	tx *sql.Tx
}

func (s *orderStore) InsertOrder(ctx context.Context, order domain.Order) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO orders (id, table_ref, payment_method, total_minor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		order.ID, order.TableRef, order.PaymentMethod, order.TotalMinor,
		order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return classifyError("insert order", err)
	}
	return nil
}

func (s *orderStore) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, table_ref, payment_method, total_minor, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(
		&order.ID, &order.TableRef, &order.PaymentMethod, &order.TotalMinor,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
		}
		return domain.Order{}, classifyError("select order", err)
	}

	items, err := s.ItemsForOrder(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (s *orderStore) UpdateOrderTotal(ctx context.Context, orderID string, totalMinor int64) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE orders SET total_minor = $2, updated_at = NOW() WHERE id = $1
	`, orderID, totalMinor)
	if err != nil {
		return classifyError("update order total", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classifyError("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return nil
}

func (s *orderStore) InsertItem(ctx context.Context, item domain.OrderItem) error {
	if _, err := s.tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, total_minor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		item.ID, item.OrderID, item.ProductID, item.Quantity, item.TotalMinor,
		item.Note, item.CreatedAt,
	); err != nil {
		return classifyError("insert order item", err)
	}
	return nil
}

func (s *orderStore) UpdateItem(ctx context.Context, item domain.OrderItem) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE order_items
		SET quantity = $3, total_minor = $4, note = $5
		WHERE id = $1 AND order_id = $2
	`, item.ID, item.OrderID, item.Quantity, item.TotalMinor, item.Note)
	if err != nil {
		return classifyError("update order item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classifyError("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("order item %s: %w", item.ID, domain.ErrOrderItemNotFound)
	}
	return nil
}

func (s *orderStore) DeleteItem(ctx context.Context, orderID, itemID string) error {
	res, err := s.tx.ExecContext(ctx, `
		DELETE FROM order_items WHERE id = $1 AND order_id = $2
	`, itemID, orderID)
	if err != nil {
		return classifyError("delete order item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classifyError("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("order item %s: %w", itemID, domain.ErrOrderItemNotFound)
	}
	return nil
}

func (s *orderStore) GetItem(ctx context.Context, orderID, itemID string) (domain.OrderItem, error) {
	return s.scanItem(s.tx.QueryRowContext(ctx, `
		SELECT id, order_id, product_id, quantity, total_minor, note, created_at
		FROM order_items
		WHERE id = $1 AND order_id = $2
	`, itemID, orderID), itemID)
}

func (s *orderStore) FindItemByProduct(ctx context.Context, orderID, productID string) (domain.OrderItem, error) {
	return s.scanItem(s.tx.QueryRowContext(ctx, `
		SELECT id, order_id, product_id, quantity, total_minor, note, created_at
		FROM order_items
		WHERE order_id = $1 AND product_id = $2
	`, orderID, productID), productID)
}

func (s *orderStore) ItemsForOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, total_minor, note, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, classifyError("load order items", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
			&item.TotalMinor, &item.Note, &item.CreatedAt,
		); err != nil {
			return nil, classifyError("scan order item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("iterate order items", err)
	}

	return items, nil
}

func (s *orderStore) SumItemTotals(ctx context.Context, orderID string) (int64, error) {
	var total int64
	if err := s.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_minor), 0) FROM order_items WHERE order_id = $1
	`, orderID).Scan(&total); err != nil {
		return 0, classifyError("sum item totals", err)
	}
	return total, nil
}

func (s *orderStore) scanItem(row *sql.Row, ref string) (domain.OrderItem, error) {
	var item domain.OrderItem
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
		&item.TotalMinor, &item.Note, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItem{}, fmt.Errorf("order item %s: %w", ref, domain.ErrOrderItemNotFound)
		}
		return domain.OrderItem{}, classifyError("scan order item", err)
	}
	return item, nil
}

var _ domain.OrderStore = (*orderStore)(nil)
