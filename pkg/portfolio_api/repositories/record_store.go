package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
)

// Store is a generic record store over a single gorm entity type. Filters are
// equality maps combined with AND; listing is ordered by creation time,
// newest first. Absence is reported as nil (GetByID, FindOne, Update) or
// false (Remove), never as an error; storage errors propagate unchanged.
type Store[T any] struct {
	db *gorm.DB
}

func NewStore[T any](db *gorm.DB) *Store[T] {
	return &Store[T]{db: db}
}

// DB exposes the underlying handle for callers that need raw access.
func (s *Store[T]) DB() *gorm.DB { return s.db }

func (s *Store[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var record T
	err := s.db.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindOne returns the newest record matching the filters, or nil.
func (s *Store[T]) FindOne(ctx context.Context, filters map[string]any) (*T, error) {
	var record T
	err := s.db.WithContext(ctx).Where(filters).Order("created_at DESC").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store[T]) GetAll(ctx context.Context, filters map[string]any, limit, offset int) ([]T, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var records []T
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Create inserts the record in place; gorm assigns the id and timestamps.
func (s *Store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// Update applies a partial update and returns the refreshed record, or nil
// when no row has that id. Map updates bypass gorm's field serializers, so
// slice values are encoded to JSON here to match the list columns' storage
// format.
func (s *Store[T]) Update(ctx context.Context, id uint, fields map[string]any) (*T, error) {
	if len(fields) == 0 {
		return s.GetByID(ctx, id)
	}
	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		normalized[k] = normalizeValue(v)
	}
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(normalized)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// Remove deletes by id and reports whether a row existed.
func (s *Store[T]) Remove(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store[T]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	q := s.db.WithContext(ctx).Model(new(T))
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store[T]) Exists(ctx context.Context, filters map[string]any) (bool, error) {
	n, err := s.Count(ctx, filters)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []string:
		b, err := json.Marshal(val)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}
