package storage

import (
	"github.com/uptrace/bun"
)

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// ItemModel represents one row of the items table.
// Data holds the JSON encoded property values.
type ItemModel struct {
	bun.BaseModel `bun:"table:items"`

	ID        string `bun:"id,pk"`
	Data      string `bun:"data,notnull"`
	CreatedAt int64  `bun:"created_at,notnull"` // Unix nanoseconds
	UpdatedAt int64  `bun:"updated_at,notnull"` // Unix nanoseconds
}
