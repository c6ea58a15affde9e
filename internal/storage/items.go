package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendItems stores texts in one transaction. Empty texts are skipped.
func (s *SQLiteStore) AppendItems(ctx context.Context, texts []string) ([]Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (item_id, text, created_at_ms) VALUES (?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	items := make([]Item, 0, len(texts))
	for _, text := range texts {
		if text == "" {
			continue
		}
		item := Item{
			ItemID:      uuid.New().String(),
			Text:        text,
			CreatedAtMs: now,
		}
		res, err := stmt.ExecContext(ctx, item.ItemID, item.Text, item.CreatedAtMs)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to read item id: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit items: %w", err)
	}
	return items, nil
}

// CountItems counts the items matching f.
func (s *SQLiteStore) CountItems(ctx context.Context, f Filter) (int, error) {
	return countItems(ctx, s.db, f)
}

// ListItems lists matching items in insertion order.
func (s *SQLiteStore) ListItems(ctx context.Context, q ItemQuery) ([]Item, error) {
	return listItems(ctx, s.db, q)
}

// FetchPage returns page pageNum of the items matching f. Pages are
// 1-based: page p covers matching items [(p-1)*pageSize, p*pageSize).
// The count and the page are read in one transaction so the total always
// describes the dataset the page came from.
func (s *SQLiteStore) FetchPage(ctx context.Context, f Filter, pageNum, pageSize int) (*Page, error) {
	if pageNum <= 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: page %d size %d", ErrInvalidPage, pageNum, pageSize)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total, err := countItems(ctx, tx, f)
	if err != nil {
		return nil, err
	}
	items, err := listItems(ctx, tx, ItemQuery{
		Filter: f,
		Limit:  pageSize,
		Offset: (pageNum - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total}, nil
}

// DeleteItems removes items by item ID.
func (s *SQLiteStore) DeleteItems(ctx context.Context, itemIDs []string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var removed int64
	for _, id := range itemIDs {
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE item_id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete item %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return removed, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countItems(ctx context.Context, q queryer, f Filter) (int, error) {
	where, args := f.where()
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

func listItems(ctx context.Context, q queryer, iq ItemQuery) ([]Item, error) {
	where, args := iq.Filter.where()
	query := `SELECT id, item_id, text, created_at_ms FROM items WHERE ` + where + ` ORDER BY id`

	limit := iq.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(iq.Offset, 0))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ItemID, &it.Text, &it.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}
