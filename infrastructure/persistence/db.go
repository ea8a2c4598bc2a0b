// Package persistence provides the GORM-backed summary and event stores.
package persistence

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/helixml/marketbasket/internal/database"
)

// allModels returns every GORM model that AutoMigrate manages.
func allModels() []any {
	return []any{
		&ProductSummaryModel{},
		&ProductRelationshipModel{},
		&BasketEventModel{},
	}
}

// AutoMigrate creates or updates the tables of all models.
func AutoMigrate(db database.Database) error {
	if err := db.GORM().AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// ValidateSchema verifies every model field has a column in the database
// and returns an error listing the missing ones.
func ValidateSchema(db database.Database) error {
	gdb := db.GORM()
	migrator := gdb.Migrator()

	var missing []string
	for _, model := range allModels() {
		stmt := &gorm.Statement{DB: gdb}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model schema: %w", err)
		}
		if !migrator.HasTable(model) {
			missing = append(missing, stmt.Table)
			continue
		}

		columnTypes, err := migrator.ColumnTypes(model)
		if err != nil {
			return fmt.Errorf("get column types for %s: %w", stmt.Table, err)
		}
		actual := make(map[string]bool, len(columnTypes))
		for _, ct := range columnTypes {
			actual[ct.Name()] = true
		}

		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || field.DBName == "-" {
				continue
			}
			if !actual[field.DBName] {
				missing = append(missing, stmt.Table+"."+field.DBName)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("schema validation failed, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
