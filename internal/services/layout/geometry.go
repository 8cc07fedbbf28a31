package layout

import (
	"errors"
	"fmt"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/gorm"
)

// Rect is the floor footprint of a storage area
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// X2 is the far edge along x
func (r Rect) X2() float64 { return r.X + r.Length }

// Y2 is the far edge along y
func (r Rect) Y2() float64 { return r.Y + r.Width }

// RectOf returns the footprint of an area
func RectOf(a models.StorageArea) Rect {
	return Rect{X: a.X, Y: a.Y, Length: a.Length, Width: a.Width}
}

// Overlaps reports whether two footprints share interior space.
// Rectangles that only touch along an edge do not overlap.
func Overlaps(a, b Rect) bool {
	return !(a.X2() <= b.X || a.X >= b.X2() || a.Y2() <= b.Y || a.Y >= b.Y2())
}

// CheckOverlap fails with a GeometryConflictError when r overlaps any area
// of the warehouse other than excludeAreaID (0 excludes nothing).
func CheckOverlap(tx *gorm.DB, warehouseID uint, r Rect, excludeAreaID uint) error {
	q := tx.Where("warehouse_id = ?", warehouseID).
		Where("NOT (x + length <= ? OR x >= ? OR y + width <= ? OR y >= ?)", r.X, r.X2(), r.Y, r.Y2())
	if excludeAreaID != 0 {
		q = q.Where("id <> ?", excludeAreaID)
	}

	var conflict models.StorageArea
	err := q.Order("id").First(&conflict).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query overlapping areas: %w", err)
	}
	return &apperr.GeometryConflictError{AreaID: conflict.ID, AreaCode: conflict.Code}
}

// CheckBounds validates extents and keeps the footprint inside the
// warehouse. A warehouse with a zero dimension leaves that axis unbounded.
func CheckBounds(wh models.Warehouse, r Rect, height float64) error {
	v := &apperr.ValidationError{}
	if r.X < 0 {
		v.Add("x", "must not be negative")
	}
	if r.Y < 0 {
		v.Add("y", "must not be negative")
	}
	if r.Length <= 0 {
		v.Add("length", "must be positive")
	}
	if r.Width <= 0 {
		v.Add("width", "must be positive")
	}
	if height <= 0 {
		v.Add("height", "must be positive")
	}
	if wh.Length > 0 && r.X2() > wh.Length {
		v.Add("length", fmt.Sprintf("area extends past warehouse length %.2f", wh.Length))
	}
	if wh.Width > 0 && r.Y2() > wh.Width {
		v.Add("width", fmt.Sprintf("area extends past warehouse width %.2f", wh.Width))
	}
	if wh.Height > 0 && height > wh.Height {
		v.Add("height", fmt.Sprintf("area is taller than warehouse height %.2f", wh.Height))
	}
	return v.OrNil()
}
