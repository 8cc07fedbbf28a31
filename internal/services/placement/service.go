// Package placement records which items occupy which storage areas. Every
// capacity-affecting write runs the ledger check, the write and the usage
// refresh in one transaction.
package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/capacity"
	"gorm.io/gorm"
)

// Service handles placement operations
type Service struct {
	db     *database.DB
	ledger *capacity.Ledger
	now    func() time.Time
}

// NewService creates a new placement service
func NewService(db *database.DB, ledger *capacity.Ledger) *Service {
	return &Service{
		db:     db,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest is the payload for a new placement
type CreateRequest struct {
	WarehouseID uint                   `json:"warehouse_id"`
	AreaID      uint                   `json:"area_id"`
	ItemID      uint                   `json:"item_id"`
	Quantity    int                    `json:"quantity"`
	PlacedAt    time.Time              `json:"placed_at"`
	ExpiresAt   *time.Time             `json:"expires_at"`
	Status      models.PlacementStatus `json:"status"`
	Note        string                 `json:"note"`
	CreatedBy   string                 `json:"-"`
}

// UpdateRequest carries the mutable fields; nil means unchanged
type UpdateRequest struct {
	Quantity  *int                    `json:"quantity"`
	ExpiresAt *time.Time              `json:"expires_at"`
	Status    *models.PlacementStatus `json:"status"`
	Note      *string                 `json:"note"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create stores a placement after checking references, dates and capacity
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Placement, error) {
	if req.Status == "" {
		req.Status = models.PlacementStatusPlaced
	}
	if req.PlacedAt.IsZero() {
		req.PlacedAt = s.now()
	}

	v := &apperr.ValidationError{}
	if req.WarehouseID == 0 {
		v.Add("warehouse_id", "required")
	}
	if req.AreaID == 0 {
		v.Add("area_id", "required")
	}
	if req.ItemID == 0 {
		v.Add("item_id", "required")
	}
	if req.Quantity < 1 {
		v.Add("quantity", "must be at least 1")
	}
	if req.PlacedAt.Before(startOfDay(s.now())) {
		v.Add("placed_at", "must not be in the past")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(req.PlacedAt) {
		v.Add("expires_at", "must be after placed_at")
	}
	if !req.Status.Valid() {
		v.Add("status", "must be placed, reserved or retrieved")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	p := &models.Placement{
		WarehouseID: req.WarehouseID,
		AreaID:      req.AreaID,
		ItemID:      req.ItemID,
		Quantity:    req.Quantity,
		PlacedAt:    req.PlacedAt.UTC(),
		ExpiresAt:   req.ExpiresAt,
		Status:      req.Status,
		Note:        req.Note,
		CreatedBy:   req.CreatedBy,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return CreateTx(tx, p)
	})
	if err != nil {
		return nil, passDomain("failed to create placement", err)
	}
	return p, nil
}

// CreateTx inserts a validated placement inside tx. It resolves the
// references, enforces the area/warehouse pairing and reserves capacity.
func CreateTx(tx *gorm.DB, p *models.Placement) error {
	var wh models.Warehouse
	if err := tx.First(&wh, p.WarehouseID).Error; err != nil {
		return notFound(err, "warehouse", p.WarehouseID)
	}
	var item models.Item
	if err := tx.First(&item, p.ItemID).Error; err != nil {
		return notFound(err, "item", p.ItemID)
	}
	area, err := capacity.LockArea(tx, p.AreaID)
	if err != nil {
		return err
	}
	if area.WarehouseID != p.WarehouseID {
		return apperr.Invalid("area_id", fmt.Sprintf("area %d does not belong to warehouse %d", area.ID, wh.ID))
	}

	if p.Status.Active() {
		if err := capacity.Reserve(tx, area, item.Volume()*float64(p.Quantity), 0); err != nil {
			return err
		}
	}
	if err := tx.Create(p).Error; err != nil {
		return err
	}
	return capacity.Refresh(tx, area)
}

// Update changes quantity, expiry, status or note. Growth in consumed
// volume is re-checked against the area with this placement excluded.
func (s *Service) Update(ctx context.Context, id uint, req UpdateRequest) (*models.Placement, error) {
	var updated *models.Placement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Placement
		if err := tx.Preload("Item").First(&p, id).Error; err != nil {
			return notFound(err, "placement", id)
		}
		area, err := capacity.LockArea(tx, p.AreaID)
		if err != nil {
			return err
		}

		oldQty, oldActive := p.Quantity, p.Status.Active()

		v := &apperr.ValidationError{}
		if req.Quantity != nil {
			if *req.Quantity < 1 {
				v.Add("quantity", "must be at least 1")
			}
			p.Quantity = *req.Quantity
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				v.Add("status", "must be placed, reserved or retrieved")
			}
			p.Status = *req.Status
		}
		if req.ExpiresAt != nil {
			if !req.ExpiresAt.After(p.PlacedAt) {
				v.Add("expires_at", "must be after placed_at")
			}
			p.ExpiresAt = req.ExpiresAt
		}
		if req.Note != nil {
			p.Note = *req.Note
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		grows := p.Status.Active() && (!oldActive || p.Quantity > oldQty)
		if grows {
			volume := p.Item.Volume() * float64(p.Quantity)
			if err := capacity.Reserve(tx, area, volume, p.ID); err != nil {
				return err
			}
		}

		item := p.Item
		p.Item = nil
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		p.Item = item
		if err := capacity.Refresh(tx, area); err != nil {
			return err
		}
		updated = &p
		return nil
	})
	if err != nil {
		return nil, passDomain("failed to update placement", err)
	}
	return updated, nil
}

// Delete removes a placement unconditionally
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Placement
		if err := tx.First(&p, id).Error; err != nil {
			return notFound(err, "placement", id)
		}
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		area, err := capacity.LockArea(tx, p.AreaID)
		if err != nil {
			return err
		}
		return capacity.Refresh(tx, area)
	})
	return passDomain("failed to delete placement", err)
}

// Get loads one placement with its relations
func (s *Service) Get(ctx context.Context, id uint) (*models.Placement, error) {
	var p models.Placement
	err := s.db.WithContext(ctx).
		Preload("Warehouse").Preload("Area").Preload("Item").
		First(&p, id).Error
	if err != nil {
		return nil, notFound(err, "placement", id)
	}
	return &p, nil
}

func notFound(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("load %s: %w", entity, err)
}

// passDomain keeps typed errors unwrapped so their messages reach callers
// verbatim, and adds context to everything else.
func passDomain(msg string, err error) error {
	if err == nil {
		return nil
	}
	var (
		v  *apperr.ValidationError
		nf *apperr.NotFoundError
		ce *apperr.CapacityExceededError
		cf *apperr.ConflictError
	)
	if errors.As(err, &v) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &cf) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
