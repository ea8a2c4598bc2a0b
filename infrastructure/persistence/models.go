package persistence

import (
	"time"

	"gorm.io/datatypes"
)

// ProductSummaryModel is the header row of an anchor product's summary.
// Version is the optimistic concurrency token; the first save writes 1.
type ProductSummaryModel struct {
	ProductID string    `gorm:"column:product_id;primaryKey;size:36"`
	Version   int64     `gorm:"column:version;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the table name.
func (ProductSummaryModel) TableName() string { return "product_summaries" }

// ProductRelationshipModel stores one combination count of a summary,
// unique per (product_id, combination_key).
type ProductRelationshipModel struct {
	ID             int64                       `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID      string                      `gorm:"column:product_id;size:36;not null;uniqueIndex:idx_relationships_product_combination,priority:1"`
	CombinationKey string                      `gorm:"column:combination_key;type:text;not null;uniqueIndex:idx_relationships_product_combination,priority:2"`
	Products       datatypes.JSONSlice[string] `gorm:"column:products;not null"`
	Size           int                         `gorm:"column:size;not null;index"`
	BasketCount    int64                       `gorm:"column:basket_count;not null"`
	CreatedAt      time.Time                   `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at;not null"`
}

// TableName returns the table name.
func (ProductRelationshipModel) TableName() string { return "product_relationships" }

// BasketEventModel is an inbox row: an event waiting to be projected.
type BasketEventModel struct {
	ID              int64                       `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID       string                      `gorm:"column:product_id;size:36;not null;index"`
	RelatedProducts datatypes.JSONSlice[string] `gorm:"column:related_products;not null"`
	PartitionKey    int                         `gorm:"column:partition_key;not null;index:idx_basket_events_partition"`
	Attempts        int                         `gorm:"column:attempts;not null;default:0"`
	LastError       string                      `gorm:"column:last_error;type:text"`
	DeadLetteredAt  *time.Time                  `gorm:"column:dead_lettered_at;index"`
	CreatedAt       time.Time                   `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;not null"`
}

// TableName returns the table name.
func (BasketEventModel) TableName() string { return "basket_events" }
