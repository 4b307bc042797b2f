package database

import (
	"context"
	"fmt"

	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// ProductStore is the catalog access consumed by the control surface and
// the session factory.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]types.Product, error)
	ReplaceProducts(ctx context.Context, products []types.Product) error
}

// ListProducts returns the catalog in insertion order.
func (s *Sqlite) ListProducts(ctx context.Context) ([]types.Product, error) {
	var products []types.Product
	err := s.connections.SelectContext(ctx, &products,
		"SELECT id, name, media_file, description FROM products ORDER BY id ASC")
	if err != nil {
		s.logger.Error("error listing products", "error", err.Error())
		return nil, fmt.Errorf("error listing products: %w", err)
	}
	return products, nil
}

// ReplaceProducts swaps the whole catalog in one transaction. The dashboard
// edits the catalog as a document, so a full replace keeps the store and
// the editor trivially in sync.
func (s *Sqlite) ReplaceProducts(ctx context.Context, products []types.Product) error {
	tx, err := s.connections.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting products transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return fmt.Errorf("error clearing products: %w", err)
	}

	query := `INSERT INTO products (name, media_file, description)
	          VALUES (:name, :media_file, :description)`
	for _, p := range products {
		s.logger.Debug("inserting product", "name", p.Name)
		if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
			s.logger.Error("error inserting product", "error", err.Error(), "name", p.Name)
			return fmt.Errorf("error inserting product %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing products: %w", err)
	}
	return nil
}
