package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"wanderlust/internal/domain"
)

// CartRepo stores each cart as one JSON row keyed by owner. It satisfies
// cart.Storage when no Redis is configured.
type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

func (r *CartRepo) Load(ctx context.Context, key string) ([]domain.CartItem, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, `SELECT items_json FROM carts WHERE owner_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.CartItem{}, nil
	}
	if err != nil {
		return nil, err
	}
	items := []domain.CartItem{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("cart %s: %w", key, err)
	}
	return items, nil
}

func (r *CartRepo) Save(ctx context.Context, key string, items []domain.CartItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO carts(owner_key, items_json, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(owner_key) DO UPDATE SET items_json = excluded.items_json, updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *CartRepo) Clear(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE owner_key = ?`, key)
	return err
}
