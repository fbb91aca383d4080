package item

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naughtygopher/errors"
)

type postgresItemStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*postgresItemStore, error) { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	return &postgresItemStore{pool: pool}, nil
}

func (pstore *postgresItemStore) Item(ctx context.Context, id int64) (*Item, error) {
	const query = `
		SELECT id, name, price
		FROM items
		WHERE id = $1
	`

	item := new(Item)
	err := pstore.pool.QueryRow(ctx, query, id).Scan(&item.ID, &item.Name, &item.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(ErrNotFound, fmt.Sprintf("id '%d'", id))
		}
		return nil, errors.Wrap(err, "failed getting item")
	}

	return item, nil
}
