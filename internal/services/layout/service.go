// Package layout manages warehouses and the storage areas drawn inside
// them, keeping area footprints disjoint and inside warehouse bounds.
package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/capacity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles warehouse and storage area operations
type Service struct {
	db     *database.DB
	ledger *capacity.Ledger
}

// NewService creates a new layout service
func NewService(db *database.DB, ledger *capacity.Ledger) *Service {
	return &Service{db: db, ledger: ledger}
}

// WarehouseInput is the payload for creating or updating a warehouse
type WarehouseInput struct {
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Length        float64  `json:"length"`
	Width         float64  `json:"width"`
	Height        float64  `json:"height"`
	TotalCapacity *float64 `json:"total_capacity"`
	IsActive      *bool    `json:"is_active"`
}

func (in WarehouseInput) validate() error {
	v := &apperr.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "required")
	} else if len(in.Name) > 100 {
		v.Add("name", "at most 100 characters")
	}
	if in.Length < 0 || in.Width < 0 || in.Height < 0 {
		v.Add("dimensions", "must not be negative")
	}
	if in.TotalCapacity != nil && *in.TotalCapacity < 0 {
		v.Add("total_capacity", "must not be negative")
	}
	return v.OrNil()
}

// CreateWarehouse registers a new warehouse. Total capacity defaults to the
// footprint volume.
func (s *Service) CreateWarehouse(ctx context.Context, in WarehouseInput) (*models.Warehouse, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	wh := &models.Warehouse{
		Name:          strings.TrimSpace(in.Name),
		Address:       in.Address,
		Length:        in.Length,
		Width:         in.Width,
		Height:        in.Height,
		TotalCapacity: in.Length * in.Width * in.Height,
		IsActive:      true,
	}
	if in.TotalCapacity != nil {
		wh.TotalCapacity = *in.TotalCapacity
	}
	if in.IsActive != nil {
		wh.IsActive = *in.IsActive
	}

	db := s.db.WithContext(ctx)
	var dup int64
	if err := db.Model(&models.Warehouse{}).Where("name = ?", wh.Name).Count(&dup).Error; err != nil {
		return nil, fmt.Errorf("check warehouse name: %w", err)
	}
	if dup > 0 {
		return nil, apperr.Invalid("name", "already taken")
	}

	if err := db.Create(wh).Error; err != nil {
		return nil, fmt.Errorf("failed to create warehouse: %w", err)
	}
	return wh, nil
}

// GetWarehouse loads a warehouse with its areas
func (s *Service) GetWarehouse(ctx context.Context, id uint) (*models.Warehouse, error) {
	var wh models.Warehouse
	err := s.db.WithContext(ctx).Preload("Areas", func(db *gorm.DB) *gorm.DB {
		return db.Order("code")
	}).First(&wh, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("warehouse", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse: %w", err)
	}
	return &wh, nil
}

// ListWarehouses returns warehouses ordered by name. activeOnly filters
// inactive ones out.
func (s *Service) ListWarehouses(ctx context.Context, activeOnly bool) ([]models.Warehouse, error) {
	q := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []models.Warehouse
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	return list, nil
}

// UpdateWarehouse replaces the editable fields. The new dimensions must
// still contain every storage area, and the declared total capacity may not
// drop below the volume already in use.
func (s *Service) UpdateWarehouse(ctx context.Context, id uint, in WarehouseInput) (*models.Warehouse, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var wh *models.Warehouse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Warehouse
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("warehouse", id)
		}
		if err != nil {
			return err
		}

		current.Name = strings.TrimSpace(in.Name)
		current.Address = in.Address
		current.Length, current.Width, current.Height = in.Length, in.Width, in.Height
		if in.TotalCapacity != nil {
			current.TotalCapacity = *in.TotalCapacity
		}
		if in.IsActive != nil {
			current.IsActive = *in.IsActive
		}

		var areas []models.StorageArea
		if err := tx.Where("warehouse_id = ?", id).Order("code").Find(&areas).Error; err != nil {
			return err
		}
		for _, a := range areas {
			if CheckBounds(current, RectOf(a), a.Height) != nil {
				return apperr.Invalid("dimensions",
					fmt.Sprintf("storage area %s would fall outside the warehouse", a.Code))
			}
		}

		used, err := capacity.WarehouseConsumed(tx, id)
		if err != nil {
			return err
		}
		if current.TotalCapacity < used {
			return apperr.Invalid("total_capacity",
				fmt.Sprintf("must be at least the used capacity %.2f", used))
		}

		if err := tx.Save(&current).Error; err != nil {
			return err
		}
		wh = &current
		return nil
	})
	if err != nil {
		return nil, wrapDomain("failed to update warehouse", err)
	}
	return wh, nil
}

// DeleteWarehouse removes a warehouse that no longer has storage areas
func (s *Service) DeleteWarehouse(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wh models.Warehouse
		if err := tx.First(&wh, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("warehouse", id)
			}
			return err
		}
		var areas int64
		if err := tx.Model(&models.StorageArea{}).Where("warehouse_id = ?", id).Count(&areas).Error; err != nil {
			return err
		}
		if areas > 0 {
			return apperr.Conflictf("warehouse %d still has %d storage areas", id, areas)
		}
		return tx.Delete(&wh).Error
	})
}

// wrapDomain adds context to infrastructure errors and passes typed domain
// errors through untouched so callers can still match them directly.
func wrapDomain(msg string, err error) error {
	var (
		v   *apperr.ValidationError
		nf  *apperr.NotFoundError
		geo *apperr.GeometryConflictError
		cf  *apperr.ConflictError
	)
	if errors.As(err, &v) || errors.As(err, &nf) || errors.As(err, &geo) || errors.As(err, &cf) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
