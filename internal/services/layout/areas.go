package layout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/capacity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AreaInput is the payload for creating a storage area
type AreaInput struct {
	WarehouseID uint            `json:"warehouse_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Length      float64         `json:"length"`
	Width       float64         `json:"width"`
	Height      float64         `json:"height"`
	Capacity    *float64        `json:"capacity"`
	Kind        models.AreaKind `json:"kind"`
	IsAvailable *bool           `json:"is_available"`
}

// AreaPatch carries the fields of an area update; nil means unchanged
type AreaPatch struct {
	Code        *string          `json:"code"`
	Name        *string          `json:"name"`
	X           *float64         `json:"x"`
	Y           *float64         `json:"y"`
	Length      *float64         `json:"length"`
	Width       *float64         `json:"width"`
	Height      *float64         `json:"height"`
	Capacity    *float64         `json:"capacity"`
	Kind        *models.AreaKind `json:"kind"`
	IsAvailable *bool            `json:"is_available"`
}

// AreaFilter narrows ListAreas
type AreaFilter struct {
	WarehouseID uint
	Kind        models.AreaKind
	Available   *bool
}

// AreaStats summarizes the areas of one warehouse
type AreaStats struct {
	WarehouseID   uint                      `json:"warehouse_id"`
	TotalAreas    int64                     `json:"total_areas"`
	Available     int64                     `json:"available_areas"`
	TotalCapacity float64                   `json:"total_capacity"`
	UsedCapacity  float64                   `json:"used_capacity"`
	Percentage    float64                   `json:"utilization_percentage"`
	ByKind        map[models.AreaKind]int64 `json:"by_kind"`
}

func validateLabels(v *apperr.ValidationError, code, name string) {
	if code == "" {
		v.Add("code", "required")
	} else if len(code) > 20 {
		v.Add("code", "at most 20 characters")
	}
	if name == "" {
		v.Add("name", "required")
	} else if len(name) > 100 {
		v.Add("name", "at most 100 characters")
	}
}

// CreateArea validates and stores a new storage area. Geometry checks and
// the insert share one transaction holding the warehouse row lock, so two
// concurrent creates cannot both claim the same floor space.
func (s *Service) CreateArea(ctx context.Context, in AreaInput) (*models.StorageArea, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Kind == "" {
		in.Kind = models.AreaKindShelf
	}

	v := &apperr.ValidationError{}
	if in.WarehouseID == 0 {
		v.Add("warehouse_id", "required")
	}
	validateLabels(v, in.Code, in.Name)
	if !in.Kind.Valid() {
		v.Add("kind", "must be shelf, floor or special")
	}
	if in.Capacity != nil && *in.Capacity < 0 {
		v.Add("capacity", "must not be negative")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	area := &models.StorageArea{
		WarehouseID: in.WarehouseID,
		Code:        in.Code,
		Name:        in.Name,
		X:           in.X,
		Y:           in.Y,
		Length:      in.Length,
		Width:       in.Width,
		Height:      in.Height,
		Kind:        in.Kind,
		IsAvailable: true,
		Version:     1,
	}
	area.Capacity = area.GeometricVolume()
	if in.Capacity != nil && *in.Capacity > 0 {
		area.Capacity = *in.Capacity
	}
	if in.IsAvailable != nil {
		area.IsAvailable = *in.IsAvailable
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wh, err := lockWarehouse(tx, in.WarehouseID)
		if err != nil {
			return err
		}
		if !wh.IsActive {
			return apperr.Invalid("warehouse_id", "warehouse is not active")
		}
		if err := CheckBounds(*wh, RectOf(*area), area.Height); err != nil {
			return err
		}
		if err := checkCodeUnique(tx, area.WarehouseID, area.Code, 0); err != nil {
			return err
		}
		if err := CheckOverlap(tx, area.WarehouseID, RectOf(*area), 0); err != nil {
			return err
		}
		return tx.Create(area).Error
	})
	if err != nil {
		return nil, wrapDomain("failed to create storage area", err)
	}
	return area, nil
}

// UpdateArea applies a patch. Any footprint change is re-validated against
// the other areas, and a new capacity may not fall below consumed volume.
// Changing a dimension without an explicit capacity recomputes it.
func (s *Service) UpdateArea(ctx context.Context, id uint, p AreaPatch) (*models.StorageArea, error) {
	var area *models.StorageArea
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := capacity.LockArea(tx, id)
		if err != nil {
			return err
		}
		before := RectOf(*current)
		beforeHeight := current.Height

		if p.Code != nil {
			current.Code = strings.TrimSpace(*p.Code)
		}
		if p.Name != nil {
			current.Name = strings.TrimSpace(*p.Name)
		}
		if p.X != nil {
			current.X = *p.X
		}
		if p.Y != nil {
			current.Y = *p.Y
		}
		if p.Length != nil {
			current.Length = *p.Length
		}
		if p.Width != nil {
			current.Width = *p.Width
		}
		if p.Height != nil {
			current.Height = *p.Height
		}
		if p.Kind != nil {
			current.Kind = *p.Kind
		}
		if p.IsAvailable != nil {
			current.IsAvailable = *p.IsAvailable
		}

		v := &apperr.ValidationError{}
		validateLabels(v, current.Code, current.Name)
		if !current.Kind.Valid() {
			v.Add("kind", "must be shelf, floor or special")
		}
		if p.Capacity != nil && *p.Capacity < 0 {
			v.Add("capacity", "must not be negative")
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		rect := RectOf(*current)
		resized := rect.Length != before.Length || rect.Width != before.Width || current.Height != beforeHeight
		switch {
		case p.Capacity != nil && *p.Capacity > 0:
			current.Capacity = *p.Capacity
		case resized:
			current.Capacity = current.GeometricVolume()
		}

		if rect != before || current.Height != beforeHeight {
			wh, err := lockWarehouse(tx, current.WarehouseID)
			if err != nil {
				return err
			}
			if err := CheckBounds(*wh, rect, current.Height); err != nil {
				return err
			}
			if err := CheckOverlap(tx, current.WarehouseID, rect, current.ID); err != nil {
				return err
			}
		}
		if p.Code != nil {
			if err := checkCodeUnique(tx, current.WarehouseID, current.Code, current.ID); err != nil {
				return err
			}
		}

		used, err := capacity.Consumed(tx, current.ID, 0)
		if err != nil {
			return err
		}
		if current.Capacity < used {
			return apperr.Invalid("capacity",
				fmt.Sprintf("must be at least the used capacity %.2f", used))
		}

		if err := tx.Save(current).Error; err != nil {
			return err
		}
		if err := capacity.Refresh(tx, current); err != nil {
			return err
		}
		area = current
		return nil
	})
	if err != nil {
		return nil, wrapDomain("failed to update storage area", err)
	}
	return area, nil
}

// DeleteArea removes an area that holds no placements and is not named by
// any recommendation
func (s *Service) DeleteArea(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		area, err := capacity.LockArea(tx, id)
		if err != nil {
			return err
		}

		var placements int64
		if err := tx.Model(&models.Placement{}).Where("area_id = ?", id).Count(&placements).Error; err != nil {
			return err
		}
		if placements > 0 {
			return apperr.Conflictf("storage area %s still holds %d placements", area.Code, placements)
		}

		var recs int64
		if err := tx.Model(&models.Recommendation{}).
			Where("current_area_id = ? OR target_area_id = ?", id, id).
			Count(&recs).Error; err != nil {
			return err
		}
		if recs > 0 {
			return apperr.Conflictf("storage area %s is referenced by %d recommendations", area.Code, recs)
		}

		if err := tx.Delete(area).Error; err != nil {
			return err
		}
		return capacity.RefreshWarehouse(tx, area.WarehouseID)
	})
	return wrapDomain("failed to delete storage area", err)
}

// ToggleAvailability flips whether the solver may use the area
func (s *Service) ToggleAvailability(ctx context.Context, id uint) (*models.StorageArea, error) {
	var area *models.StorageArea
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := capacity.LockArea(tx, id)
		if err != nil {
			return err
		}
		current.IsAvailable = !current.IsAvailable
		if err := tx.Model(current).Update("is_available", current.IsAvailable).Error; err != nil {
			return err
		}
		area = current
		return nil
	})
	if err != nil {
		return nil, wrapDomain("failed to toggle storage area", err)
	}
	return area, nil
}

// GetArea loads one area with its warehouse
func (s *Service) GetArea(ctx context.Context, id uint) (*models.StorageArea, error) {
	var area models.StorageArea
	err := s.db.WithContext(ctx).Preload("Warehouse").First(&area, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("storage area", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load storage area: %w", err)
	}
	return &area, nil
}

// ListAreas returns areas ordered by warehouse and code
func (s *Service) ListAreas(ctx context.Context, f AreaFilter) ([]models.StorageArea, error) {
	q := s.db.WithContext(ctx).Order("warehouse_id, code")
	if f.WarehouseID != 0 {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Available != nil {
		q = q.Where("is_available = ?", *f.Available)
	}
	var areas []models.StorageArea
	if err := q.Find(&areas).Error; err != nil {
		return nil, fmt.Errorf("failed to list storage areas: %w", err)
	}
	return areas, nil
}

// Stats aggregates the areas of one warehouse
func (s *Service) Stats(ctx context.Context, warehouseID uint) (*AreaStats, error) {
	areas, err := s.ListAreas(ctx, AreaFilter{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}
	usage, err := s.ledger.WarehouseUsage(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	stats := &AreaStats{
		WarehouseID:  warehouseID,
		TotalAreas:   int64(len(areas)),
		UsedCapacity: usage.Used,
		ByKind:       make(map[models.AreaKind]int64),
	}
	for _, a := range areas {
		if a.IsAvailable {
			stats.Available++
		}
		stats.TotalCapacity += a.Capacity
		stats.ByKind[a.Kind]++
	}
	if stats.TotalCapacity > 0 {
		stats.Percentage = math.Round(stats.UsedCapacity/stats.TotalCapacity*10000) / 100
	}
	return stats, nil
}

func lockWarehouse(tx *gorm.DB, id uint) (*models.Warehouse, error) {
	var wh models.Warehouse
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&wh, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("warehouse", id)
	}
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

func checkCodeUnique(tx *gorm.DB, warehouseID uint, code string, excludeID uint) error {
	q := tx.Model(&models.StorageArea{}).Where("warehouse_id = ? AND code = ?", warehouseID, code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Invalid("code", "already used in this warehouse")
	}
	return nil
}
