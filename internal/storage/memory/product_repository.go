package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// stockLedger мутирует staged-состояние транзакции. Сериализацию конкурирующих
// операций обеспечивает mutex в Store, поэтому здесь никаких блокировок нет.
type stockLedger struct {
	st *state
}

func (l *stockLedger) GetProductForUpdate(_ context.Context, productID string) (domain.Product, error) {
	p, ok := l.st.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	return p, nil
}

func (l *stockLedger) Reserve(_ context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("reserve %d of product %s: %w", qty, productID, domain.ErrInvalidQuantity)
	}

	p, ok := l.st.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if p.Stock < qty {
		return fmt.Errorf("product %q (have %d, want %d): %w", p.Name, p.Stock, qty, domain.ErrInsufficientStock)
	}

	p.Stock -= qty
	l.st.products[productID] = p
	return nil
}

func (l *stockLedger) Release(_ context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("release %d of product %s: %w", qty, productID, domain.ErrInvalidQuantity)
	}

	p, ok := l.st.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}

	p.Stock += qty
	l.st.products[productID] = p
	return nil
}

func (l *stockLedger) SetStock(_ context.Context, productID string, stock int32) error {
	if stock < 0 {
		return fmt.Errorf("set stock %d for product %s: %w", stock, productID, domain.ErrInvalidQuantity)
	}

	p, ok := l.st.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}

	p.Stock = stock
	l.st.products[productID] = p
	return nil
}

var _ domain.StockLedger = (*stockLedger)(nil)
