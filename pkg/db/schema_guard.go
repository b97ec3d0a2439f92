package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ColumnType represents expected column schema
type ColumnType struct {
	Name     string
	DataType string
	Nullable bool
}

// TableSchema represents expected table structure
type TableSchema struct {
	Name    string
	Columns []ColumnType
}

// SchemaGuard validates database schema matches expectations
type SchemaGuard struct {
	db *sql.DB
}

// NewSchemaGuard creates a new schema guard
func NewSchemaGuard(db *sql.DB) *SchemaGuard {
	return &SchemaGuard{db: db}
}

// ContentSchemas returns the posts and postmeta tables the media service reads and writes
func ContentSchemas(prefix string) []TableSchema {
	return []TableSchema{
		{
			Name: prefix + "posts",
			Columns: []ColumnType{
				{Name: "ID", DataType: "bigint"},
				{Name: "post_type", DataType: "varchar"},
				{Name: "post_mime_type", DataType: "varchar"},
				{Name: "post_parent", DataType: "bigint"},
				{Name: "post_title", DataType: "text"},
				{Name: "post_status", DataType: "varchar"},
				{Name: "guid", DataType: "varchar"},
			},
		},
		{
			Name: prefix + "postmeta",
			Columns: []ColumnType{
				{Name: "meta_id", DataType: "bigint"},
				{Name: "post_id", DataType: "bigint"},
				{Name: "meta_key", DataType: "varchar"},
				{Name: "meta_value", DataType: "longtext", Nullable: true},
			},
		},
	}
}

// ValidateTable validates a table's schema
func (sg *SchemaGuard) ValidateTable(ctx context.Context, schema TableSchema) error {
	query := `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE()
		AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

	rows, err := sg.db.QueryContext(ctx, query, schema.Name)
	if err != nil {
		return fmt.Errorf("failed to query table schema for %s: %w", schema.Name, err)
	}
	defer rows.Close()

	actualColumns := make(map[string]ColumnType)
	for rows.Next() {
		var colName, dataType, isNullable string
		if err := rows.Scan(&colName, &dataType, &isNullable); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		actualColumns[colName] = ColumnType{
			Name:     colName,
			DataType: dataType,
			Nullable: isNullable == "YES",
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read column info: %w", err)
	}

	if len(actualColumns) == 0 {
		return fmt.Errorf("table %s does not exist or has no columns", schema.Name)
	}

	for _, expectedCol := range schema.Columns {
		actualCol, exists := actualColumns[expectedCol.Name]
		if !exists {
			return fmt.Errorf("table %s missing expected column: %s", schema.Name, expectedCol.Name)
		}

		if !matchesDataType(actualCol.DataType, expectedCol.DataType) {
			return fmt.Errorf("table %s column %s has type %s, expected %s",
				schema.Name, expectedCol.Name, actualCol.DataType, expectedCol.DataType)
		}
	}

	return nil
}

// matchesDataType accepts sized variants (varchar matches varchar(191))
func matchesDataType(actual, expected string) bool {
	actual = strings.ToLower(actual)
	expected = strings.ToLower(expected)
	return strings.HasPrefix(actual, expected)
}

// ValidateTables validates multiple tables
func (sg *SchemaGuard) ValidateTables(ctx context.Context, schemas []TableSchema) error {
	for _, schema := range schemas {
		if err := sg.ValidateTable(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}
