package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/domain/query"
	"github.com/helixml/marketbasket/internal/database"
)

// relationshipBatchSize keeps upserts below SQLite's bound-variable limit.
const relationshipBatchSize = 500

// SummaryStore implements basket.SummaryStore using GORM.
type SummaryStore struct {
	database.Repository[basket.Summary, ProductSummaryModel]
	relationships RelationshipMapper
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(db database.Database) SummaryStore {
	return SummaryStore{
		Repository: database.NewRepository[basket.Summary, ProductSummaryModel](db, SummaryMapper{}, "summary"),
	}
}

// Get returns the summary with its relationships in insertion order, or an
// empty summary when the product has none.
func (s SummaryStore) Get(ctx context.Context, productID uuid.UUID) (basket.Summary, error) {
	return database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (basket.Summary, error) {
		var header ProductSummaryModel
		err := tx.Where("product_id = ?", productID.String()).First(&header).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return basket.NewSummary(productID), nil
		}
		if err != nil {
			return basket.Summary{}, fmt.Errorf("get summary %s: %w", productID, err)
		}

		summary, err := s.Mapper().ToDomain(header)
		if err != nil {
			return basket.Summary{}, err
		}

		var rows []ProductRelationshipModel
		if err := tx.Where("product_id = ?", header.ProductID).Order("id ASC").Find(&rows).Error; err != nil {
			return basket.Summary{}, fmt.Errorf("get relationships %s: %w", productID, err)
		}

		relationships := make([]basket.Relationship, len(rows))
		for i, row := range rows {
			r, err := s.relationships.ToDomain(row)
			if err != nil {
				return basket.Summary{}, err
			}
			relationships[i] = r
		}
		return summary.WithRelationships(relationships), nil
	})
}

// Save persists summary if the stored version still equals summary.Version()
// and returns it with the incremented version. Relationships are upserted by
// combination key; only the relationships reported by summary.Changed are
// written and rows are never deleted.
func (s SummaryStore) Save(ctx context.Context, summary basket.Summary) (basket.Summary, error) {
	return database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (basket.Summary, error) {
		now := time.Now().UTC()
		productID := summary.ProductID().String()
		createdAt := summary.CreatedAt()

		if summary.IsNew() {
			createdAt = now
			header := ProductSummaryModel{ProductID: productID, Version: 1, CreatedAt: now, UpdatedAt: now}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&header)
			if res.Error != nil {
				return basket.Summary{}, fmt.Errorf("create summary %s: %w", productID, res.Error)
			}
			if res.RowsAffected == 0 {
				return basket.Summary{}, fmt.Errorf("%w: %s already exists", basket.ErrConcurrentUpdate, productID)
			}
		} else {
			res := tx.Model(&ProductSummaryModel{}).
				Where("product_id = ? AND version = ?", productID, summary.Version()).
				UpdateColumns(map[string]any{
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				})
			if res.Error != nil {
				return basket.Summary{}, fmt.Errorf("update summary %s: %w", productID, res.Error)
			}
			if res.RowsAffected == 0 {
				return basket.Summary{}, fmt.Errorf("%w: %s is no longer at version %d",
					basket.ErrConcurrentUpdate, productID, summary.Version())
			}
		}

		rels := summary.Changed()
		if len(rels) > 0 {
			rows := make([]ProductRelationshipModel, len(rels))
			for i, r := range rels {
				rows[i] = s.relationships.ToModel(summary.ProductID(), r)
				rows[i].CreatedAt = now
				rows[i].UpdatedAt = now
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "product_id"}, {Name: "combination_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"basket_count", "updated_at"}),
			}).CreateInBatches(&rows, relationshipBatchSize).Error
			if err != nil {
				return basket.Summary{}, fmt.Errorf("save relationships %s: %w", productID, err)
			}
		}

		return summary.WithVersion(summary.Version()+1, createdAt, now), nil
	})
}

// Find returns summary headers, without relationships, matching options.
func (s SummaryStore) Find(ctx context.Context, options ...query.Option) ([]basket.Summary, error) {
	return s.Repository.Find(ctx, options...)
}

// Count returns the number of stored summaries matching options.
func (s SummaryStore) Count(ctx context.Context, options ...query.Option) (int64, error) {
	return s.Repository.Count(ctx, options...)
}

// CountRelationships returns the number of stored relationships of productID.
func (s SummaryStore) CountRelationships(ctx context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB(ctx).Model(&ProductRelationshipModel{}).Where("product_id = ?", productID.String()).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count relationships %s: %w", productID, err)
	}
	return n, nil
}
