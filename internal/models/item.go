package models

import "time"

// Priority is a three-level tier shared by items and recommendations
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known tier
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ItemCategory groups items. Only the reference matters here.
type ItemCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for ItemCategory model
func (ItemCategory) TableName() string {
	return "item_categories"
}

// Item is a stock-keeping unit. Dimensions are centimetres, weight kg.
type Item struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Code       string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Name       string    `gorm:"type:varchar(200);not null" json:"name"`
	CategoryID *uint     `gorm:"index" json:"category_id,omitempty"`
	Length     float64   `gorm:"not null" json:"length"`
	Width      float64   `gorm:"not null" json:"width"`
	Height     float64   `gorm:"not null" json:"height"`
	Weight     float64   `gorm:"not null;default:0" json:"weight"`
	Fragile    bool      `gorm:"not null;default:false" json:"fragile"`
	Priority   Priority  `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Category *ItemCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// TableName specifies the table name for Item model
func (Item) TableName() string {
	return "items"
}

// Volume returns the item's volume in cubic metres
func (i Item) Volume() float64 {
	return (i.Length / 100) * (i.Width / 100) * (i.Height / 100)
}

// ItemVolumeSQL is Item.Volume expressed over the items table
const ItemVolumeSQL = "(items.length / 100.0) * (items.width / 100.0) * (items.height / 100.0)"
