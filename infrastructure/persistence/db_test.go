package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/marketbasket/infrastructure/persistence"
	"github.com/helixml/marketbasket/internal/testdb"
)

func TestValidateSchema(t *testing.T) {
	db := testdb.NewPlain(t)

	err := persistence.ValidateSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product_summaries")

	require.NoError(t, persistence.AutoMigrate(db))
	assert.NoError(t, persistence.ValidateSchema(db))

	// migrations are idempotent
	require.NoError(t, persistence.AutoMigrate(db))
}

func TestValidateSchema_MissingColumn(t *testing.T) {
	db := testdb.New(t)
	require.NoError(t, db.Session(context.Background()).Exec("ALTER TABLE basket_events DROP COLUMN last_error").Error)

	err := persistence.ValidateSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "basket_events.last_error")
}
