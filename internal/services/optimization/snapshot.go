package optimization

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/gorm"
)

// AreaState is an available area with its live usage
type AreaState struct {
	ID          uint            `json:"id"`
	WarehouseID uint            `json:"warehouse_id"`
	Code        string          `json:"code"`
	Kind        models.AreaKind `json:"kind"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Length      float64         `json:"length"`
	Width       float64         `json:"width"`
	Height      float64         `json:"height"`
	Capacity    float64         `json:"capacity"`
	Used        float64         `json:"used"`
	Remaining   float64         `json:"remaining"`
}

// WarehouseState groups a warehouse with its available areas
type WarehouseState struct {
	ID            uint        `json:"id"`
	Name          string      `json:"name"`
	Length        float64     `json:"length"`
	Width         float64     `json:"width"`
	Height        float64     `json:"height"`
	TotalCapacity float64     `json:"total_capacity"`
	Areas         []AreaState `json:"areas"`
}

// ItemState is an item as the solver sees it. Volume is cubic metres.
type ItemState struct {
	ID       uint            `json:"id"`
	Code     string          `json:"code"`
	Length   float64         `json:"length"`
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	Volume   float64         `json:"volume"`
	Weight   float64         `json:"weight"`
	Fragile  bool            `json:"fragile"`
	Priority models.Priority `json:"priority"`
}

// PlacementState is an active placement in one of the snapshot's areas
type PlacementState struct {
	ID        uint                   `json:"id"`
	AreaID    uint                   `json:"area_id"`
	ItemID    uint                   `json:"item_id"`
	Quantity  int                    `json:"quantity"`
	Status    models.PlacementStatus `json:"status"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

// Snapshot is the warehouse state written to the solver's state file
type Snapshot struct {
	TakenAt     time.Time        `json:"taken_at"`
	Warehouses  []WarehouseState `json:"warehouses"`
	Items       []ItemState      `json:"items"`
	Placements  []PlacementState `json:"placements"`
	Capacity    float64          `json:"capacity"`
	Used        float64          `json:"used"`
	Utilization float64          `json:"utilization"` // percent
}

// WarehouseState returns the snapshot a solver would see for the given
// warehouses, every active warehouse when ids is empty, and every item
func (m *Manager) WarehouseState(ctx context.Context, warehouseIDs []uint) (*Snapshot, error) {
	db := m.db.WithContext(ctx)
	if len(warehouseIDs) == 0 {
		if err := db.Model(&models.Warehouse{}).Where("is_active = ?", true).Order("id").Pluck("id", &warehouseIDs).Error; err != nil {
			return nil, fmt.Errorf("failed to list warehouses: %w", err)
		}
	}
	var itemIDs []uint
	if err := db.Model(&models.Item{}).Order("id").Pluck("id", &itemIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return takeSnapshot(db, warehouseIDs, itemIDs, m.now())
}

func takeSnapshot(db *gorm.DB, warehouseIDs, itemIDs []uint, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		TakenAt:    now,
		Warehouses: []WarehouseState{},
		Items:      []ItemState{},
		Placements: []PlacementState{},
	}

	var warehouses []models.Warehouse
	if err := db.Where("id IN ?", warehouseIDs).Order("id").Find(&warehouses).Error; err != nil {
		return nil, fmt.Errorf("failed to load warehouses: %w", err)
	}
	var areas []models.StorageArea
	err := db.Where("warehouse_id IN ? AND is_available = ?", warehouseIDs, true).
		Order("warehouse_id, code").Find(&areas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load areas: %w", err)
	}

	areaIDs := make([]uint, 0, len(areas))
	for _, a := range areas {
		areaIDs = append(areaIDs, a.ID)
	}
	used, err := usageByArea(db, areaIDs)
	if err != nil {
		return nil, err
	}

	byWarehouse := make(map[uint][]AreaState)
	for _, a := range areas {
		u := used[a.ID]
		byWarehouse[a.WarehouseID] = append(byWarehouse[a.WarehouseID], AreaState{
			ID: a.ID, WarehouseID: a.WarehouseID, Code: a.Code, Kind: a.Kind,
			X: a.X, Y: a.Y, Length: a.Length, Width: a.Width, Height: a.Height,
			Capacity: a.Capacity, Used: u, Remaining: math.Max(0, a.Capacity-u),
		})
		snap.Capacity += a.Capacity
		snap.Used += u
	}
	for _, w := range warehouses {
		st := WarehouseState{
			ID: w.ID, Name: w.Name, Length: w.Length, Width: w.Width, Height: w.Height,
			TotalCapacity: w.TotalCapacity, Areas: byWarehouse[w.ID],
		}
		if st.Areas == nil {
			st.Areas = []AreaState{}
		}
		snap.Warehouses = append(snap.Warehouses, st)
	}

	var items []models.Item
	if err := db.Where("id IN ?", itemIDs).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	for _, it := range items {
		snap.Items = append(snap.Items, ItemState{
			ID: it.ID, Code: it.Code, Length: it.Length, Width: it.Width, Height: it.Height,
			Volume: it.Volume(), Weight: it.Weight, Fragile: it.Fragile, Priority: it.Priority,
		})
	}

	if len(areaIDs) > 0 {
		var placements []models.Placement
		err := db.Where("area_id IN ? AND status <> ?", areaIDs, models.PlacementStatusRetrieved).
			Order("id").Find(&placements).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load placements: %w", err)
		}
		for _, p := range placements {
			snap.Placements = append(snap.Placements, PlacementState{
				ID: p.ID, AreaID: p.AreaID, ItemID: p.ItemID,
				Quantity: p.Quantity, Status: p.Status, ExpiresAt: p.ExpiresAt,
			})
		}
	}

	if snap.Capacity > 0 {
		snap.Utilization = math.Round(snap.Used/snap.Capacity*10000) / 100
	}
	return snap, nil
}

// usageByArea sums active placement volume per area in one query
func usageByArea(db *gorm.DB, areaIDs []uint) (map[uint]float64, error) {
	used := make(map[uint]float64, len(areaIDs))
	if len(areaIDs) == 0 {
		return used, nil
	}

	var rows []struct {
		AreaID uint
		Used   float64
	}
	err := db.Model(&models.Placement{}).
		Select("placements.area_id AS area_id, COALESCE(SUM("+models.ItemVolumeSQL+" * placements.quantity), 0) AS used").
		Joins("JOIN items ON items.id = placements.item_id").
		Where("placements.area_id IN ? AND placements.status <> ?", areaIDs, models.PlacementStatusRetrieved).
		Group("placements.area_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum area usage: %w", err)
	}
	for _, r := range rows {
		used[r.AreaID] = r.Used
	}
	return used, nil
}
