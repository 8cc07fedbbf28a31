package placement

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/capacity"
	"gorm.io/gorm"
)

const (
	defaultPerPage      = 15
	maxPerPage          = 100
	defaultExpiringDays = 7
)

// Filter narrows List. Zero values mean "any".
type Filter struct {
	WarehouseID uint
	AreaID      uint
	ItemID      uint
	Status      models.PlacementStatus
	Search      string // matched against item code and name
	Page        int
	PerPage     int
}

// Page is one page of placements
type Page struct {
	Data    []models.Placement `json:"data"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

// Expiring is a placement annotated with whole days until expiry.
// DaysRemaining is negative once the placement has expired.
type Expiring struct {
	models.Placement
	DaysRemaining int `json:"days_remaining"`
}

// Statistics counts placements by status and expiry
type Statistics struct {
	Total        int64 `json:"total_placements"`
	Placed       int64 `json:"placed"`
	Reserved     int64 `json:"reserved"`
	Retrieved    int64 `json:"retrieved"`
	Expired      int64 `json:"expired"`
	ExpiringSoon int64 `json:"expiring_soon"`
}

// List returns placements newest first
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}

	q := s.filtered(ctx, f)
	page := &Page{Page: f.Page, PerPage: f.PerPage}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count placements: %w", err)
	}
	err := q.Preload("Warehouse").Preload("Area").Preload("Item").
		Order("placements.placed_at DESC, placements.id DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&page.Data).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	return page, nil
}

// All returns every placement matching f, ignoring paging. Used by exports.
func (s *Service) All(ctx context.Context, f Filter) ([]models.Placement, error) {
	var list []models.Placement
	err := s.filtered(ctx, f).
		Preload("Warehouse").Preload("Area").Preload("Item").
		Order("placements.placed_at DESC, placements.id DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	return list, nil
}

func (s *Service) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Placement{})
	if f.WarehouseID != 0 {
		q = q.Where("placements.warehouse_id = ?", f.WarehouseID)
	}
	if f.AreaID != 0 {
		q = q.Where("placements.area_id = ?", f.AreaID)
	}
	if f.ItemID != 0 {
		q = q.Where("placements.item_id = ?", f.ItemID)
	}
	if f.Status != "" {
		q = q.Where("placements.status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Joins("JOIN items ON items.id = placements.item_id").
			Where("items.code LIKE ? OR items.name LIKE ?", like, like)
	}
	return q
}

// AreaCapacity is the capacity summary of one area
func (s *Service) AreaCapacity(ctx context.Context, areaID uint) (*capacity.Usage, error) {
	return s.ledger.AreaUsage(ctx, areaID)
}

// History lists every placement of an item, newest first
func (s *Service) History(ctx context.Context, itemID uint) ([]models.Placement, error) {
	db := s.db.WithContext(ctx)
	var item models.Item
	if err := db.First(&item, itemID).Error; err != nil {
		return nil, notFound(err, "item", itemID)
	}

	var list []models.Placement
	err := db.Where("item_id = ?", itemID).
		Preload("Warehouse").Preload("Area").
		Order("placed_at DESC, id DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load placement history: %w", err)
	}
	return list, nil
}

// ExpiringSoon returns active placements whose expiry falls within the next
// days days (7 when days < 1), soonest first. Already expired placements
// are included.
func (s *Service) ExpiringSoon(ctx context.Context, days int) ([]Expiring, error) {
	if days < 1 {
		days = defaultExpiringDays
	}
	now := s.now()
	cutoff := now.Add(time.Duration(days) * 24 * time.Hour)

	candidates, err := s.activeWithExpiry(ctx, true)
	if err != nil {
		return nil, err
	}

	out := make([]Expiring, 0)
	for _, p := range candidates {
		if p.ExpiresAt.After(cutoff) {
			continue
		}
		out = append(out, Expiring{Placement: p, DaysRemaining: daysUntil(now, *p.ExpiresAt)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
	})
	return out, nil
}

// Statistics counts placements by status and expiry state
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var rows []struct {
		Status models.PlacementStatus
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&models.Placement{}).
		Select("status, COUNT(*) AS n").Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count placements: %w", err)
	}

	stats := &Statistics{}
	for _, r := range rows {
		stats.Total += r.N
		switch r.Status {
		case models.PlacementStatusPlaced:
			stats.Placed = r.N
		case models.PlacementStatusReserved:
			stats.Reserved = r.N
		case models.PlacementStatusRetrieved:
			stats.Retrieved = r.N
		}
	}

	active, err := s.activeWithExpiry(ctx, false)
	if err != nil {
		return nil, err
	}
	now := s.now()
	soon := now.Add(defaultExpiringDays * 24 * time.Hour)
	for _, p := range active {
		switch {
		case p.ExpiresAt.Before(now):
			stats.Expired++
		case !p.ExpiresAt.After(soon):
			stats.ExpiringSoon++
		}
	}
	return stats, nil
}

// activeWithExpiry loads non-retrieved placements that carry an expiry.
// Date windows are applied in Go so the comparison does not depend on how
// the driver stores timestamps.
func (s *Service) activeWithExpiry(ctx context.Context, withRelations bool) ([]models.Placement, error) {
	q := s.db.WithContext(ctx).
		Where("status <> ? AND expires_at IS NOT NULL", models.PlacementStatusRetrieved)
	if withRelations {
		q = q.Preload("Warehouse").Preload("Area").Preload("Item")
	}
	var list []models.Placement
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to load expiring placements: %w", err)
	}
	return list, nil
}

func daysUntil(now, t time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}
