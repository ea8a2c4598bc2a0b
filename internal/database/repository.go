package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/helixml/marketbasket/domain/query"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// EntityMapper converts between domain values and GORM models. ToDomain may
// fail because stored columns such as JSON lists are decoded on the way out.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) (D, error)
	ToModel(domain D) E
}

// Repository provides query.Option based reads over one GORM model.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a Repository. label names the entity in errors.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{db: db, mapper: mapper, label: label}
}

// Find returns every entity matching options.
func (r Repository[D, E]) Find(ctx context.Context, options ...query.Option) ([]D, error) {
	return r.FindIn(r.db.Session(ctx), options...)
}

// FindIn is Find against an existing session, typically a transaction.
func (r Repository[D, E]) FindIn(tx *gorm.DB, options ...query.Option) ([]D, error) {
	var entities []E
	if err := ApplyOptions(tx.Model(new(E)), options...).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}
	return r.toDomain(entities)
}

// FindOne returns the first entity matching options or ErrNotFound.
func (r Repository[D, E]) FindOne(ctx context.Context, options ...query.Option) (D, error) {
	var zero D
	var entity E
	err := ApplyOptions(r.db.Session(ctx), options...).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, r.label)
	}
	if err != nil {
		return zero, fmt.Errorf("find one %s: %w", r.label, err)
	}
	d, err := r.mapper.ToDomain(entity)
	if err != nil {
		return zero, fmt.Errorf("map %s: %w", r.label, err)
	}
	return d, nil
}

// Exists reports whether any entity matches options.
func (r Repository[D, E]) Exists(ctx context.Context, options ...query.Option) (bool, error) {
	n, err := r.Count(ctx, options...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of entities matching the conditions in options.
func (r Repository[D, E]) Count(ctx context.Context, options ...query.Option) (int64, error) {
	var count int64
	if err := ApplyConditions(r.db.Session(ctx).Model(new(E)), options...).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return count, nil
}

// DeleteBy removes the entities matching options. At least one condition is required.
func (r Repository[D, E]) DeleteBy(ctx context.Context, options ...query.Option) error {
	if len(query.Build(options...).Conditions()) == 0 {
		return fmt.Errorf("delete %s: refusing to delete without conditions", r.label)
	}
	if err := ApplyConditions(r.db.Session(ctx), options...).Delete(new(E)).Error; err != nil {
		return fmt.Errorf("delete %s: %w", r.label, err)
	}
	return nil
}

// DB returns a session bound to ctx.
func (r Repository[D, E]) DB(ctx context.Context) *gorm.DB {
	return r.db.Session(ctx)
}

// Database returns the underlying connection.
func (r Repository[D, E]) Database() Database {
	return r.db
}

// Mapper returns the entity mapper.
func (r Repository[D, E]) Mapper() EntityMapper[D, E] {
	return r.mapper
}

func (r Repository[D, E]) toDomain(entities []E) ([]D, error) {
	out := make([]D, len(entities))
	for i, e := range entities {
		d, err := r.mapper.ToDomain(e)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", r.label, err)
		}
		out[i] = d
	}
	return out, nil
}
