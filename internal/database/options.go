package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/helixml/marketbasket/domain/query"
)

// ApplyOptions translates query options into WHERE, ORDER BY, LIMIT and
// OFFSET clauses on db.
func ApplyOptions(db *gorm.DB, options ...query.Option) *gorm.DB {
	q := query.Build(options...)
	db = applyConditions(db, q)

	for _, ord := range q.Orders() {
		dir := "ASC"
		if !ord.Ascending() {
			dir = "DESC"
		}
		db = db.Order(fmt.Sprintf("%s %s", ord.Field(), dir))
	}
	if q.Limit() > 0 {
		db = db.Limit(q.Limit())
	}
	if q.Offset() > 0 {
		db = db.Offset(q.Offset())
	}
	return db
}

// ApplyConditions applies only the WHERE clauses, for COUNT queries.
func ApplyConditions(db *gorm.DB, options ...query.Option) *gorm.DB {
	return applyConditions(db, query.Build(options...))
}

func applyConditions(db *gorm.DB, q query.Query) *gorm.DB {
	for _, cond := range q.Conditions() {
		switch cond.Operator() {
		case query.OpIn:
			db = db.Where(fmt.Sprintf("%s IN ?", cond.Field()), cond.Value())
		case query.OpIsNull:
			db = db.Where(fmt.Sprintf("%s IS NULL", cond.Field()))
		case query.OpIsNotNull:
			db = db.Where(fmt.Sprintf("%s IS NOT NULL", cond.Field()))
		default:
			db = db.Where(fmt.Sprintf("%s = ?", cond.Field()), cond.Value())
		}
	}
	return db
}
