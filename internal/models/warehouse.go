package models

import "time"

// AreaKind classifies how a storage area is used
type AreaKind string

const (
	AreaKindShelf   AreaKind = "shelf"   // racking
	AreaKindFloor   AreaKind = "floor"   // open floor space
	AreaKindSpecial AreaKind = "special" // cold room, hazmat cage, etc.
)

// Valid reports whether k is a known area kind
func (k AreaKind) Valid() bool {
	switch k {
	case AreaKindShelf, AreaKindFloor, AreaKindSpecial:
		return true
	}
	return false
}

// Warehouse is a top-level storage facility. Dimensions are metres,
// capacities cubic metres.
type Warehouse struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Address       string    `gorm:"type:text" json:"address"`
	Length        float64   `gorm:"not null;default:0" json:"length"`
	Width         float64   `gorm:"not null;default:0" json:"width"`
	Height        float64   `gorm:"not null;default:0" json:"height"`
	TotalCapacity float64   `gorm:"not null;default:0" json:"total_capacity"`
	CapacityUsed  float64   `gorm:"not null;default:0" json:"capacity_used"` // derived, display only
	IsActive      bool      `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relations
	Areas []StorageArea `gorm:"foreignKey:WarehouseID" json:"areas,omitempty"`
}

// TableName specifies the table name for Warehouse model
func (Warehouse) TableName() string {
	return "warehouses"
}

// StorageArea is an axis-aligned rectangular zone inside a warehouse
type StorageArea struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WarehouseID  uint      `gorm:"not null;uniqueIndex:idx_area_warehouse_code" json:"warehouse_id"`
	Code         string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_area_warehouse_code" json:"code"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	X            float64   `gorm:"not null;default:0" json:"x"`
	Y            float64   `gorm:"not null;default:0" json:"y"`
	Length       float64   `gorm:"not null" json:"length"`
	Width        float64   `gorm:"not null" json:"width"`
	Height       float64   `gorm:"not null" json:"height"`
	Capacity     float64   `gorm:"not null" json:"capacity"`
	CapacityUsed float64   `gorm:"not null;default:0" json:"capacity_used"` // derived, display only
	Kind         AreaKind  `gorm:"type:varchar(20);not null;default:'shelf'" json:"kind"`
	IsAvailable  bool      `gorm:"not null" json:"is_available"`
	Version      int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Warehouse *Warehouse `gorm:"foreignKey:WarehouseID" json:"warehouse,omitempty"`
}

// TableName specifies the table name for StorageArea model
func (StorageArea) TableName() string {
	return "storage_areas"
}

// GeometricVolume is length x width x height
func (a StorageArea) GeometricVolume() float64 {
	return a.Length * a.Width * a.Height
}
