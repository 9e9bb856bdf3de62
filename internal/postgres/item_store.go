package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/benpsk/itemboard/internal/item"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ItemStore struct {
	db DBTX
}

func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{db: pool}
}

func (s *ItemStore) Create(ctx context.Context, createdBy int64, title, description string) (item.ItemWithUser, error) {
	db := DBFromContext(ctx, s.db)
	var out item.ItemWithUser
	err := db.QueryRow(ctx, `
		with inserted as (
			insert into items (title, description, created_by)
			values ($1, $2, $3)
			returning id, title, description, created_at, created_by
		)
		select i.id, i.title, i.description, i.created_at, i.created_by, u.name, u.email
		from inserted i
		join users u on u.id = i.created_by
	`, title, description, createdBy).Scan(
		&out.ID, &out.Title, &out.Description, &out.CreatedAt, &out.CreatedBy,
		&out.UserName, &out.UserEmail,
	)
	if err != nil {
		return item.ItemWithUser{}, fmt.Errorf("create item: %w", err)
	}
	return out, nil
}

func (s *ItemStore) List(ctx context.Context) ([]item.ItemWithUser, error) {
	db := DBFromContext(ctx, s.db)
	rows, err := db.Query(ctx, `
		select i.id, i.title, i.description, i.created_at, i.created_by, u.name, u.email
		from items i
		join users u on u.id = i.created_by
		order by i.created_at desc, i.id desc
	`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]item.ItemWithUser, 0)
	for rows.Next() {
		var row item.ItemWithUser
		if err := rows.Scan(
			&row.ID, &row.Title, &row.Description, &row.CreatedAt, &row.CreatedBy,
			&row.UserName, &row.UserEmail,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// DeleteOwned checks existence before ownership inside one transaction, so
// a nonexistent id reports item.ErrNotFound to everyone and the row cannot
// vanish between the check and the delete.
func (s *ItemStore) DeleteOwned(ctx context.Context, id, ownerID int64) error {
	db := DBFromContext(ctx, s.db)
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete item: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var createdBy int64
	err = tx.QueryRow(ctx, `
		select created_by
		from items
		where id = $1
		for update
	`, id).Scan(&createdBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return item.ErrNotFound
		}
		return fmt.Errorf("find item for delete: %w", err)
	}
	if createdBy != ownerID {
		return item.ErrForbidden
	}

	if _, err := tx.Exec(ctx, `delete from items where id = $1`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete item: %w", err)
	}
	return nil
}
