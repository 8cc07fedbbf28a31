// Package capacity derives volumetric usage of storage areas from their
// placements. The live sum over non-retrieved placements is the only source
// of truth; capacity_used columns are refreshed for display.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tolerance absorbs float noise when comparing volumes
const tolerance = 1e-9

// Usage is the capacity summary of one area
type Usage struct {
	AreaID     uint    `json:"area_id"`
	Capacity   float64 `json:"total_capacity"`
	Used       float64 `json:"used_capacity"`
	Remaining  float64 `json:"remaining_capacity"`
	Percentage float64 `json:"percentage"`
	ItemCount  int64   `json:"item_count"`
}

// WarehouseUsage aggregates usage over all areas of a warehouse
type WarehouseUsage struct {
	WarehouseID   uint    `json:"warehouse_id"`
	TotalCapacity float64 `json:"total_capacity"`
	AreaCapacity  float64 `json:"area_capacity"`
	Used          float64 `json:"used_capacity"`
	Remaining     float64 `json:"remaining_capacity"`
	Percentage    float64 `json:"percentage"`
	AreaCount     int64   `json:"area_count"`
}

// Ledger answers capacity questions for storage areas
type Ledger struct {
	db *database.DB
}

// NewLedger creates a ledger over db
func NewLedger(db *database.DB) *Ledger {
	return &Ledger{db: db}
}

// activePlacements scopes a placements query to rows that consume capacity
func activePlacements(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.Placement{}).
		Joins("JOIN items ON items.id = placements.item_id").
		Where("placements.status <> ?", models.PlacementStatusRetrieved)
}

// Consumed returns the live volume used in an area, optionally ignoring one
// placement (pass 0 to count all).
func Consumed(tx *gorm.DB, areaID, excludePlacementID uint) (float64, error) {
	q := activePlacements(tx).Where("placements.area_id = ?", areaID)
	if excludePlacementID != 0 {
		q = q.Where("placements.id <> ?", excludePlacementID)
	}

	var total float64
	err := q.Select("COALESCE(SUM(" + models.ItemVolumeSQL + " * placements.quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum consumed volume: %w", err)
	}
	return total, nil
}

// WarehouseConsumed returns the live volume used across all areas of a warehouse
func WarehouseConsumed(tx *gorm.DB, warehouseID uint) (float64, error) {
	var used float64
	err := activePlacements(tx).
		Joins("JOIN storage_areas ON storage_areas.id = placements.area_id").
		Where("storage_areas.warehouse_id = ?", warehouseID).
		Select("COALESCE(SUM(" + models.ItemVolumeSQL + " * placements.quantity), 0)").
		Scan(&used).Error
	if err != nil {
		return 0, fmt.Errorf("sum warehouse consumption: %w", err)
	}
	return used, nil
}

// LockArea loads an area for a capacity-affecting write. On PostgreSQL the
// row stays locked until the transaction ends.
func LockArea(tx *gorm.DB, areaID uint) (*models.StorageArea, error) {
	var area models.StorageArea
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&area, areaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("storage area", areaID)
	}
	if err != nil {
		return nil, fmt.Errorf("load area: %w", err)
	}
	return &area, nil
}

// WouldFit reports whether addedVolume fits into the area next to what is
// already stored there.
func WouldFit(tx *gorm.DB, area *models.StorageArea, addedVolume float64, excludePlacementID uint) (bool, error) {
	err := Reserve(tx, area, addedVolume, excludePlacementID)
	var capErr *apperr.CapacityExceededError
	if errors.As(err, &capErr) {
		return false, nil
	}
	return err == nil, err
}

// Reserve is WouldFit returning a CapacityExceededError carrying the
// remaining and requested volumes when the volume does not fit.
func Reserve(tx *gorm.DB, area *models.StorageArea, addedVolume float64, excludePlacementID uint) error {
	used, err := Consumed(tx, area.ID, excludePlacementID)
	if err != nil {
		return err
	}
	remaining := area.Capacity - used
	if addedVolume > remaining+tolerance {
		return &apperr.CapacityExceededError{
			AreaID:    area.ID,
			Remaining: round(math.Max(remaining, 0), 6),
			Requested: round(addedVolume, 6),
		}
	}
	return nil
}

// Refresh stores the recomputed consumption on the area and its warehouse
// and bumps the area version. A concurrent writer that got there first
// makes this return a ConflictError, which must abort the transaction.
func Refresh(tx *gorm.DB, area *models.StorageArea) error {
	used, err := Consumed(tx, area.ID, 0)
	if err != nil {
		return err
	}

	res := tx.Model(&models.StorageArea{}).
		Where("id = ? AND version = ?", area.ID, area.Version).
		Updates(map[string]interface{}{
			"capacity_used": used,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("refresh area usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflictf("storage area %d was modified concurrently", area.ID)
	}
	area.CapacityUsed = used
	area.Version++

	return RefreshWarehouse(tx, area.WarehouseID)
}

// RefreshWarehouse recomputes the denormalized warehouse total from its areas
func RefreshWarehouse(tx *gorm.DB, warehouseID uint) error {
	var used float64
	err := tx.Model(&models.StorageArea{}).
		Where("warehouse_id = ?", warehouseID).
		Select("COALESCE(SUM(capacity_used), 0)").
		Scan(&used).Error
	if err != nil {
		return fmt.Errorf("sum warehouse usage: %w", err)
	}
	if err := tx.Model(&models.Warehouse{}).Where("id = ?", warehouseID).
		Update("capacity_used", used).Error; err != nil {
		return fmt.Errorf("refresh warehouse usage: %w", err)
	}
	return nil
}

// AreaUsage summarizes one area
func (l *Ledger) AreaUsage(ctx context.Context, areaID uint) (*Usage, error) {
	db := l.db.WithContext(ctx)

	var area models.StorageArea
	if err := db.First(&area, areaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("storage area", areaID)
		}
		return nil, fmt.Errorf("load area: %w", err)
	}

	used, err := Consumed(db, areaID, 0)
	if err != nil {
		return nil, err
	}

	var count int64
	err = activePlacements(db).
		Where("placements.area_id = ?", areaID).
		Select("COALESCE(SUM(placements.quantity), 0)").
		Scan(&count).Error
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	return &Usage{
		AreaID:     area.ID,
		Capacity:   area.Capacity,
		Used:       used,
		Remaining:  area.Capacity - used,
		Percentage: percentage(used, area.Capacity),
		ItemCount:  count,
	}, nil
}

// WarehouseUsage summarizes every area of a warehouse
func (l *Ledger) WarehouseUsage(ctx context.Context, warehouseID uint) (*WarehouseUsage, error) {
	db := l.db.WithContext(ctx)

	var wh models.Warehouse
	if err := db.First(&wh, warehouseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("warehouse", warehouseID)
		}
		return nil, fmt.Errorf("load warehouse: %w", err)
	}

	var areas struct {
		Count    int64
		Capacity float64
	}
	err := db.Model(&models.StorageArea{}).
		Where("warehouse_id = ?", warehouseID).
		Select("COUNT(*) AS count, COALESCE(SUM(capacity), 0) AS capacity").
		Scan(&areas).Error
	if err != nil {
		return nil, fmt.Errorf("sum area capacity: %w", err)
	}

	used, err := WarehouseConsumed(db, warehouseID)
	if err != nil {
		return nil, err
	}

	total := wh.TotalCapacity
	if total == 0 {
		total = areas.Capacity
	}
	return &WarehouseUsage{
		WarehouseID:   wh.ID,
		TotalCapacity: total,
		AreaCapacity:  areas.Capacity,
		Used:          used,
		Remaining:     total - used,
		Percentage:    percentage(used, total),
		AreaCount:     areas.Count,
	}, nil
}

func percentage(used, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return round(used/total*100, 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
