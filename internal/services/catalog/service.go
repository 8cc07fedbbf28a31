// Package catalog manages the items that can be placed in storage areas.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/gorm"
)

// Service handles item registration and lookup
type Service struct {
	db *database.DB
}

// NewService creates an item catalog backed by db
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// ItemInput registers one item. Dimensions are centimetres.
type ItemInput struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	CategoryID *uint           `json:"category_id"`
	Length     float64         `json:"length"`
	Width      float64         `json:"width"`
	Height     float64         `json:"height"`
	Weight     float64         `json:"weight"`
	Fragile    bool            `json:"fragile"`
	Priority   models.Priority `json:"priority"`
	IsActive   *bool           `json:"is_active"`
}

func (in *ItemInput) normalize() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}

	v := &apperr.ValidationError{}
	if in.Code == "" || len(in.Code) > 50 {
		v.Add("code", "required, at most 50 characters")
	}
	if in.Name == "" || len(in.Name) > 200 {
		v.Add("name", "required, at most 200 characters")
	}
	if in.Length <= 0 {
		v.Add("length", "must be positive")
	}
	if in.Width <= 0 {
		v.Add("width", "must be positive")
	}
	if in.Height <= 0 {
		v.Add("height", "must be positive")
	}
	if in.Weight < 0 {
		v.Add("weight", "must not be negative")
	}
	if !in.Priority.Valid() {
		v.Add("priority", "must be low, medium or high")
	}
	return v.OrNil()
}

// Create registers an item. Codes are unique; items start active unless
// IsActive says otherwise.
func (s *Service) Create(ctx context.Context, in ItemInput) (*models.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	item := &models.Item{
		Code:       in.Code,
		Name:       in.Name,
		CategoryID: in.CategoryID,
		Length:     in.Length,
		Width:      in.Width,
		Height:     in.Height,
		Weight:     in.Weight,
		Fragile:    in.Fragile,
		Priority:   in.Priority,
		IsActive:   in.IsActive == nil || *in.IsActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Item{}).Where("code = ?", item.Code).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return apperr.Invalid("code", "already exists")
		}
		if item.CategoryID != nil {
			var n int64
			if err := tx.Model(&models.ItemCategory{}).Where("id = ?", *item.CategoryID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperr.Invalid("category_id", "unknown category")
			}
		}
		return tx.Create(item).Error
	})
	if err != nil {
		var v *apperr.ValidationError
		if errors.As(err, &v) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// Filter narrows List. Search matches code or name, case-insensitively.
type Filter struct {
	Search string
	Active *bool
}

// List returns items ordered by code
func (s *Service) List(ctx context.Context, f Filter) ([]models.Item, error) {
	q := s.db.WithContext(ctx).Order("code")
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	var items []models.Item
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Get loads an item with its category
func (s *Service) Get(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Preload("Category").First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return &item, nil
}

// ByCode finds an item by its exact code; ok is false when none matches
func (s *Service) ByCode(ctx context.Context, code string) (item *models.Item, ok bool, err error) {
	var found models.Item
	err = s.db.WithContext(ctx).Where("code = ?", code).First(&found).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up item: %w", err)
	}
	return &found, true, nil
}
