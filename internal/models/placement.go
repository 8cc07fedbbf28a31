package models

import "time"

// PlacementStatus tracks whether a placement still occupies its area
type PlacementStatus string

const (
	PlacementStatusPlaced    PlacementStatus = "placed"
	PlacementStatusReserved  PlacementStatus = "reserved"
	PlacementStatusRetrieved PlacementStatus = "retrieved" // no longer consumes capacity
)

// Valid reports whether s is a known placement status
func (s PlacementStatus) Valid() bool {
	switch s {
	case PlacementStatusPlaced, PlacementStatusReserved, PlacementStatusRetrieved:
		return true
	}
	return false
}

// Active reports whether a placement in this status consumes capacity
func (s PlacementStatus) Active() bool {
	return s != PlacementStatusRetrieved
}

// Placement records a quantity of one item stored in one area
type Placement struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	WarehouseID uint            `gorm:"not null;index" json:"warehouse_id"`
	AreaID      uint            `gorm:"not null;index" json:"area_id"`
	ItemID      uint            `gorm:"not null;index" json:"item_id"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	PlacedAt    time.Time       `gorm:"not null" json:"placed_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Status      PlacementStatus `gorm:"type:varchar(20);not null;default:'placed';index" json:"status"`
	Note        string          `gorm:"type:text" json:"note,omitempty"`
	CreatedBy   string          `gorm:"type:varchar(100)" json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Warehouse *Warehouse   `gorm:"foreignKey:WarehouseID" json:"warehouse,omitempty"`
	Area      *StorageArea `gorm:"foreignKey:AreaID" json:"area,omitempty"`
	Item      *Item        `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// TableName specifies the table name for Placement model
func (Placement) TableName() string {
	return "placements"
}
