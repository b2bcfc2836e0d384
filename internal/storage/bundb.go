package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"lazyquery/internal/common"
	"lazyquery/internal/query"
)

// insertChunkSize bounds the rows per INSERT statement during bulk loads.
const insertChunkSize = 500

// BunDB wraps a Bun database instance for type-safe queries.
type BunDB struct {
	*bun.DB
}

// NewBunDB wraps an existing *sql.DB with Bun's type-safe query builder.
func NewBunDB(sqlDB *sql.DB) *BunDB {
	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	return &BunDB{DB: bunDB}
}

// --- Schema Info ---

// GetSchemaInfo retrieves a schema_info value by key.
func (db *BunDB) GetSchemaInfo(ctx context.Context, key string) (string, error) {
	var info SchemaInfoModel
	err := db.NewSelect().
		Model(&info).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("schema info %q: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return info.Value, nil
}

// --- Item Operations ---

// CountItems returns the number of rows in the items table.
func (db *BunDB) CountItems(ctx context.Context) (int, error) {
	return db.NewSelect().Model((*ItemModel)(nil)).Count(ctx)
}

// GetItem retrieves one item row by id.
func (db *BunDB) GetItem(ctx context.Context, id string) (*ItemModel, error) {
	var row ItemModel
	err := db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListItems returns limit rows starting at offset in the given order.
// Insertion order breaks ties.
func (db *BunDB) ListItems(ctx context.Context, keys []query.SortKey, offset, limit int) ([]ItemModel, error) {
	var rows []ItemModel
	q := db.NewSelect().Model(&rows)
	for _, k := range keys {
		expr, args := orderExpr(k)
		q = q.OrderExpr(expr, args...)
	}
	err := q.OrderExpr("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// orderExpr maps a sort key onto a column or a JSON path in data.
func orderExpr(k query.SortKey) (string, []any) {
	dir := "ASC"
	if !k.Ascending {
		dir = "DESC"
	}
	if k.PropertyID == KeyPropertyID {
		return "id " + dir, nil
	}
	return "json_extract(data, ?) " + dir, []any{jsonPath(k.PropertyID)}
}

// jsonPath addresses propertyID as a quoted label. SQLite reads the label
// verbatim up to the closing quote; query.Definition rejects ids that would
// need escaping.
func jsonPath(propertyID string) string {
	return `$."` + propertyID + `"`
}

// InsertItems bulk inserts rows in chunks inside one transaction.
func (db *BunDB) InsertItems(ctx context.Context, rows []ItemModel) error {
	if len(rows) == 0 {
		return nil
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(rows); start += insertChunkSize {
			chunk := rows[start:min(start+insertChunkSize, len(rows))]
			if _, err := tx.NewInsert().Model(&chunk).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert items: %w", err)
			}
		}
		log.Debugf("[BunDB] inserted %d items", len(rows))
		return nil
	})
}

// SaveItems applies inserts, updates and deletes atomically.
// An update or delete that matches no row fails the whole transaction.
func (db *BunDB) SaveItems(ctx context.Context, inserts, updates []ItemModel, deletes []string) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(inserts) > 0 {
			if _, err := tx.NewInsert().Model(&inserts).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert items: %w", err)
			}
		}
		for i := range updates {
			res, err := tx.NewUpdate().
				Model(&updates[i]).
				Column("data", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to update item %s: %w", updates[i].ID, err)
			}
			if err := expectRows(res, 1); err != nil {
				return fmt.Errorf("update item %s: %w", updates[i].ID, err)
			}
		}
		if len(deletes) > 0 {
			res, err := tx.NewDelete().
				Model((*ItemModel)(nil)).
				Where("id IN (?)", bun.In(deletes)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to delete items: %w", err)
			}
			if err := expectRows(res, int64(len(deletes))); err != nil {
				return fmt.Errorf("delete items: %w", err)
			}
		}
		log.Debugf("[BunDB] saved items: %d inserted, %d updated, %d deleted",
			len(inserts), len(updates), len(deletes))
		return nil
	})
}

// DeleteAllItems removes every item row and returns the number deleted.
func (db *BunDB) DeleteAllItems(ctx context.Context) (int64, error) {
	res, err := db.NewDelete().
		Model((*ItemModel)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func expectRows(res sql.Result, want int64) error {
	got, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%d of %d rows: %w", got, want, common.ErrNotFound)
	}
	return nil
}
