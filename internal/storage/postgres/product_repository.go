package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// stockLedger — PostgreSQL-реализация складского регистра внутри транзакции.
// Конкурирующие операции над одним товаром сериализуются блокировкой строки:
// проверка остатка и списание видят один и тот же закоммиченный сток.
type stockLedger struct {
	tx *sql.Tx
}

func (l *stockLedger) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := l.tx.QueryRowContext(ctx, `
		SELECT id, name, price_minor, stock, COALESCE(category_id, ''), created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(
		&p.ID, &p.Name, &p.PriceMinor, &p.Stock, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
		}
		return domain.Product{}, classifyError("select product for update", err)
	}
	return p, nil
}

func (l *stockLedger) Reserve(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("reserve %d of product %s: %w", qty, productID, domain.ErrInvalidQuantity)
	}

	var (
		name  string
		stock int32
	)
	err := l.tx.QueryRowContext(ctx, `
		SELECT name, stock FROM products WHERE id = $1 FOR UPDATE
	`, productID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
		}
		return classifyError("select stock for update", err)
	}

	if stock < qty {
		return fmt.Errorf("product %q (have %d, want %d): %w", name, stock, qty, domain.ErrInsufficientStock)
	}

	if _, err := l.tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1
	`, productID, qty); err != nil {
		return classifyError("decrement stock", err)
	}
	return nil
}

func (l *stockLedger) Release(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("release %d of product %s: %w", qty, productID, domain.ErrInvalidQuantity)
	}

	res, err := l.tx.ExecContext(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1
	`, productID, qty)
	if err != nil {
		return classifyError("increment stock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classifyError("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return nil
}

func (l *stockLedger) SetStock(ctx context.Context, productID string, stock int32) error {
	if stock < 0 {
		return fmt.Errorf("set stock %d for product %s: %w", stock, productID, domain.ErrInvalidQuantity)
	}

	res, err := l.tx.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1
	`, productID, stock)
	if err != nil {
		return classifyError("set stock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classifyError("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return nil
}

// productReader — read-only доступ к каталогу вне транзакций.
type productReader struct {
	db *sql.DB
}

// NewProductReader создаёт PostgreSQL-реализацию ProductReader.
func NewProductReader(store *Store) domain.ProductReader {
	return &productReader{db: store.DB()}
}

func (r *productReader) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price_minor, stock, COALESCE(category_id, ''), created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(
		&p.ID, &p.Name, &p.PriceMinor, &p.Stock, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
		}
		return domain.Product{}, classifyError("select product", err)
	}
	return p, nil
}

func (r *productReader) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price_minor, stock, COALESCE(category_id, ''), created_at, updated_at
		FROM products
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, classifyError("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.PriceMinor, &p.Stock, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, classifyError("scan product row", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("iterate product rows", err)
	}

	return products, nil
}

var _ domain.StockLedger = (*stockLedger)(nil)
var _ domain.ProductReader = (*productReader)(nil)
