package optimization

import (
	"fmt"
	"strings"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/gorm"
)

// Priority modes understood by the solver
const (
	ModeSpaceUtilization = "space_utilization"
	ModeAccessibility    = "accessibility"
	ModeBalanced         = "balanced"
)

const (
	defaultAlgorithm         = "simulated_annealing"
	defaultTargetUtilization = 80.0
	minTargetUtilization     = 50.0
	maxTargetUtilization     = 100.0
	maxObjectiveLength       = 500
	defaultEstimatedDuration = 300 // seconds
)

var priorityModes = []string{ModeSpaceUtilization, ModeAccessibility, ModeBalanced}

// SubmitRequest asks for one optimization run. An empty warehouse list means
// every active warehouse and an empty item list every item; AllWarehouses
// and AllItems say the same thing explicitly.
type SubmitRequest struct {
	WarehouseIDs      []uint   `json:"warehouse_ids"`
	ItemIDs           []uint   `json:"item_ids"`
	AllWarehouses     bool     `json:"all_warehouses"`
	AllItems          bool     `json:"all_items"`
	PriorityMode      string   `json:"priority_mode"`
	TargetUtilization *float64 `json:"target_utilization"`
	Objective         string   `json:"objective"`
	Algorithm         string   `json:"algorithm"`
	CreatedBy         string   `json:"-"`
}

// Parameters is the bundle stored on the job and handed to the solver
type Parameters struct {
	WarehouseIDs      []uint              `json:"warehouse_ids"`
	ItemIDs           []uint              `json:"item_ids"`
	PriorityMode      string              `json:"priority_mode"`
	TargetUtilization float64             `json:"target_utilization"`
	Objective         string              `json:"objective,omitempty"`
	Algorithm         string              `json:"algorithm"`
	Tuning            config.SolverTuning `json:"tuning"`
}

// resolve validates a request and expands the default working set
func resolve(db *gorm.DB, req SubmitRequest, tuning config.SolverTuning) (*Parameters, error) {
	p := &Parameters{
		PriorityMode:      req.PriorityMode,
		TargetUtilization: defaultTargetUtilization,
		Objective:         strings.TrimSpace(req.Objective),
		Algorithm:         req.Algorithm,
		Tuning:            tuning,
	}
	if p.PriorityMode == "" {
		p.PriorityMode = ModeSpaceUtilization
	}
	if p.Algorithm == "" {
		p.Algorithm = defaultAlgorithm
	}
	if req.TargetUtilization != nil {
		p.TargetUtilization = *req.TargetUtilization
	}

	v := &apperr.ValidationError{}
	if !contains(priorityModes, p.PriorityMode) {
		v.Add("priority_mode", "must be one of "+strings.Join(priorityModes, ", "))
	}
	if p.TargetUtilization < minTargetUtilization || p.TargetUtilization > maxTargetUtilization {
		v.Add("target_utilization", fmt.Sprintf("must be between %.0f and %.0f", minTargetUtilization, maxTargetUtilization))
	}
	if len(p.Objective) > maxObjectiveLength {
		v.Add("objective", fmt.Sprintf("at most %d characters", maxObjectiveLength))
	}
	if req.AllWarehouses && len(req.WarehouseIDs) > 0 {
		v.Add("warehouse_ids", "must be empty when all_warehouses is set")
	}
	if req.AllItems && len(req.ItemIDs) > 0 {
		v.Add("item_ids", "must be empty when all_items is set")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	var err error
	p.WarehouseIDs, err = workingSet(db, &models.Warehouse{}, req.WarehouseIDs, true, v, "warehouse_ids")
	if err != nil {
		return nil, err
	}
	p.ItemIDs, err = workingSet(db, &models.Item{}, req.ItemIDs, false, v, "item_ids")
	if err != nil {
		return nil, err
	}
	if len(p.WarehouseIDs) == 0 {
		v.Add("warehouse_ids", "no active warehouses to optimize")
	}
	if len(p.ItemIDs) == 0 {
		v.Add("item_ids", "no items to optimize")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return p, nil
}

// workingSet checks explicit ids exist, or loads every row when none were
// given (only active ones with activeOnly)
func workingSet(db *gorm.DB, model interface{}, ids []uint, activeOnly bool, v *apperr.ValidationError, field string) ([]uint, error) {
	var found []uint
	q := db.Model(model).Order("id")
	if len(ids) == 0 {
		if activeOnly {
			q = q.Where("is_active = ?", true)
		}
	} else {
		q = q.Where("id IN ?", ids)
	}
	if err := q.Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("resolve %s: %w", field, err)
	}

	if len(ids) > 0 {
		known := make(map[uint]bool, len(found))
		for _, id := range found {
			known[id] = true
		}
		var missing []string
		for _, id := range ids {
			if !known[id] {
				missing = append(missing, fmt.Sprint(id))
			}
		}
		if len(missing) > 0 {
			v.Add(field, "unknown ids: "+strings.Join(missing, ", "))
		}
	}
	return found, nil
}

// Catalog describes what a caller may ask of the optimizer
type Catalog struct {
	Algorithms        []AlgorithmInfo `json:"algorithms"`
	DefaultAlgorithm  string          `json:"default_algorithm"`
	PriorityModes     []string        `json:"priority_modes"`
	TargetUtilization struct {
		Min     float64 `json:"min"`
		Max     float64 `json:"max"`
		Default float64 `json:"default"`
	} `json:"target_utilization"`
}

// AlgorithmInfo is the public face of a registered algorithm
type AlgorithmInfo struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Algorithms lists the registered solver algorithms and accepted options
func (m *Manager) Algorithms() *Catalog {
	c := &Catalog{DefaultAlgorithm: defaultAlgorithm, PriorityModes: priorityModes}
	for _, a := range m.registry.List() {
		c.Algorithms = append(c.Algorithms, AlgorithmInfo{Code: a.Code, Name: a.Name, Description: a.Description})
	}
	c.TargetUtilization.Min = minTargetUtilization
	c.TargetUtilization.Max = maxTargetUtilization
	c.TargetUtilization.Default = defaultTargetUtilization
	return c
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
