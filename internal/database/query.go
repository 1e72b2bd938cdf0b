package database

import (
	"errors"

	"gorm.io/gorm"
)

type Query[T any] struct {
	db    *gorm.DB
	limit int
	order string
}

func (q *Query[T]) get(tx *gorm.DB) []*T {
	var res []*T

	if q.order != "" {
		tx = tx.Order(q.order)
	}

	if q.limit > 0 {
		tx = tx.Limit(q.limit)
	}

	err := tx.Find(&res).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}

	return res
}

func (q *Query[T]) one(tx *gorm.DB) *T {
	res := new(T)

	err := tx.Take(res).Error

	if err != nil {
		return nil
	}

	return res
}

func (q *Query[T]) count(tx *gorm.DB) int64 {
	var n int64

	tx.Count(&n)

	return n
}

// update applies updates to every matching row and returns the number of rows changed.
func (q *Query[T]) update(tx *gorm.DB, updates map[string]any) (int64, error) {
	tx = tx.Updates(updates)

	return tx.RowsAffected, tx.Error
}
