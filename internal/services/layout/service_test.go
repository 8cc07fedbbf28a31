package layout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/database/dbtest"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/capacity"
)

func newService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	db := dbtest.Open(t)
	return NewService(db, capacity.NewLedger(db)), db
}

func floatPtr(f float64) *float64 { return &f }

func TestCreateAreaRejectsOverlap(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "W1", 0, 0, 0)

	first, err := svc.CreateArea(ctx, AreaInput{
		WarehouseID: wh.ID, Code: "A", Name: "Area A", X: 0, Y: 0, Length: 10, Width: 10, Height: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 300.0, first.Capacity, "capacity defaults to L*W*H")

	_, err = svc.CreateArea(ctx, AreaInput{
		WarehouseID: wh.ID, Code: "B", Name: "Area B", X: 5, Y: 5, Length: 10, Width: 10, Height: 3,
	})
	var geo *apperr.GeometryConflictError
	require.True(t, errors.As(err, &geo))
	assert.Equal(t, first.ID, geo.AreaID)
	assert.Equal(t, "A", geo.AreaCode)

	// an adjacent area sharing an edge is fine
	_, err = svc.CreateArea(ctx, AreaInput{
		WarehouseID: wh.ID, Code: "C", Name: "Area C", X: 10, Y: 0, Length: 10, Width: 10, Height: 3,
	})
	assert.NoError(t, err)

	// the same footprint in another warehouse is fine
	other := dbtest.Warehouse(t, db, "W2", 0, 0, 0)
	_, err = svc.CreateArea(ctx, AreaInput{
		WarehouseID: other.ID, Code: "B", Name: "Area B", X: 5, Y: 5, Length: 10, Width: 10, Height: 3,
	})
	assert.NoError(t, err)
}

func TestCreateAreaValidation(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "W1", 20, 20, 6)

	_, err := svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "A", Name: "A", Length: 30, Width: 5, Height: 2})
	var v *apperr.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "length")

	_, err = svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "A", Name: "A", Length: 5, Width: 5, Height: 2, Kind: "attic"})
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "kind")

	_, err = svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "A", Name: "A", Length: 5, Width: 5, Height: 2, Capacity: floatPtr(12)})
	require.NoError(t, err)

	_, err = svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "A", Name: "Again", X: 10, Length: 5, Width: 5, Height: 2})
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "code")

	_, err = svc.CreateArea(ctx, AreaInput{WarehouseID: 999, Code: "Z", Name: "Z", Length: 1, Width: 1, Height: 1})
	var nf *apperr.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestCreateAreaInInactiveWarehouse(t *testing.T) {
	svc, db := newService(t)
	wh := dbtest.Warehouse(t, db, "W1", 0, 0, 0)
	require.NoError(t, db.Model(wh).Update("is_active", false).Error)

	_, err := svc.CreateArea(context.Background(), AreaInput{WarehouseID: wh.ID, Code: "A", Name: "A", Length: 1, Width: 1, Height: 1})
	var v *apperr.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "warehouse_id")
}

func TestUpdateAreaRevalidatesGeometry(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "W1", 0, 0, 0)
	a, err := svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "A", Name: "A", Length: 10, Width: 10, Height: 2})
	require.NoError(t, err)
	b, err := svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "B", Name: "B", X: 20, Length: 10, Width: 10, Height: 2})
	require.NoError(t, err)

	// moving B onto A conflicts
	_, err = svc.UpdateArea(ctx, b.ID, AreaPatch{X: floatPtr(5)})
	var geo *apperr.GeometryConflictError
	require.True(t, errors.As(err, &geo))
	assert.Equal(t, a.ID, geo.AreaID)

	// resizing A in place does not conflict with itself and recomputes capacity
	updated, err := svc.UpdateArea(ctx, a.ID, AreaPatch{Length: floatPtr(15)})
	require.NoError(t, err)
	assert.Equal(t, 300.0, updated.Capacity)
	assert.Equal(t, int64(2), updated.Version)
}

func TestUpdateAreaCapacityNotBelowUsed(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "W1", 0, 0, 0)
	area := dbtest.Area(t, db, wh.ID, "A", 0, 0, 10, 10, 1, 100)
	cube := dbtest.CubeItem(t, db, "CUBE")
	require.NoError(t, db.Create(&models.Placement{
		WarehouseID: wh.ID, AreaID: area.ID, ItemID: cube.ID, Quantity: 60,
		PlacedAt: time.Now().UTC(), Status: models.PlacementStatusPlaced,
	}).Error)

	_, err := svc.UpdateArea(ctx, area.ID, AreaPatch{Capacity: floatPtr(50)})
	var v *apperr.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "capacity")

	updated, err := svc.UpdateArea(ctx, area.ID, AreaPatch{Capacity: floatPtr(60)})
	require.NoError(t, err)
	assert.Equal(t, 60.0, updated.Capacity)
	assert.InDelta(t, 60.0, updated.CapacityUsed, 1e-9)
}

func TestDeleteAreaBlockedByPlacementsAndRecommendations(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "W1", 0, 0, 0)
	withPlacement := dbtest.Area(t, db, wh.ID, "P", 0, 0, 5, 5, 1, 25)
	withRec := dbtest.Area(t, db, wh.ID, "R", 5, 0, 5, 5, 1, 25)
	empty := dbtest.Area(t, db, wh.ID, "E", 10, 0, 5, 5, 1, 25)
	cube := dbtest.CubeItem(t, db, "CUBE")

	require.NoError(t, db.Create(&models.Placement{
		WarehouseID: wh.ID, AreaID: withPlacement.ID, ItemID: cube.ID, Quantity: 1,
		PlacedAt: time.Now().UTC(), Status: models.PlacementStatusRetrieved,
	}).Error)
	job := &models.OptimizationJob{Algorithm: "Manual", Status: models.JobStatusCompleted, StartedAt: time.Now().UTC()}
	require.NoError(t, db.Create(job).Error)
	require.NoError(t, db.Create(&models.Recommendation{
		JobID: job.ID, ItemID: cube.ID, TargetAreaID: withRec.ID, Reason: "closer to dock",
		Confidence: 0.5, Priority: models.PriorityMedium, Algorithm: "Manual", Status: models.RecommendationPending,
	}).Error)

	var conflict *apperr.ConflictError
	assert.True(t, errors.As(svc.DeleteArea(ctx, withPlacement.ID), &conflict))
	assert.True(t, errors.As(svc.DeleteArea(ctx, withRec.ID), &conflict))
	assert.NoError(t, svc.DeleteArea(ctx, empty.ID))

	var nf *apperr.NotFoundError
	assert.True(t, errors.As(svc.DeleteArea(ctx, empty.ID), &nf))
}

func TestToggleAvailabilityAndStats(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "W1", 0, 0, 0)
	a, err := svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "A", Name: "A", Length: 10, Width: 10, Height: 1})
	require.NoError(t, err)
	_, err = svc.CreateArea(ctx, AreaInput{WarehouseID: wh.ID, Code: "F", Name: "F", X: 10, Length: 10, Width: 10, Height: 1, Kind: models.AreaKindFloor})
	require.NoError(t, err)

	toggled, err := svc.ToggleAvailability(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsAvailable)

	available := true
	list, err := svc.ListAreas(ctx, AreaFilter{WarehouseID: wh.ID, Available: &available})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "F", list[0].Code)

	stats, err := svc.Stats(ctx, wh.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalAreas)
	assert.Equal(t, int64(1), stats.Available)
	assert.Equal(t, 200.0, stats.TotalCapacity)
	assert.Equal(t, int64(1), stats.ByKind[models.AreaKindFloor])
}

func TestWarehouseLifecycle(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	wh, err := svc.CreateWarehouse(ctx, WarehouseInput{Name: "Main", Length: 10, Width: 10, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, 200.0, wh.TotalCapacity)
	assert.True(t, wh.IsActive)

	_, err = svc.CreateWarehouse(ctx, WarehouseInput{Name: "Main"})
	var v *apperr.ValidationError
	require.True(t, errors.As(err, &v))

	area := dbtest.Area(t, db, wh.ID, "A", 0, 0, 10, 10, 2, 200)
	cube := dbtest.CubeItem(t, db, "CUBE")
	require.NoError(t, db.Create(&models.Placement{
		WarehouseID: wh.ID, AreaID: area.ID, ItemID: cube.ID, Quantity: 30,
		PlacedAt: time.Now().UTC(), Status: models.PlacementStatusPlaced,
	}).Error)

	_, err = svc.UpdateWarehouse(ctx, wh.ID, WarehouseInput{Name: "Main", Length: 10, Width: 10, Height: 2, TotalCapacity: floatPtr(20)})
	require.True(t, errors.As(err, &v))
	assert.Contains(t, v.Fields, "total_capacity")

	inactive := false
	updated, err := svc.UpdateWarehouse(ctx, wh.ID, WarehouseInput{Name: "Main", Length: 10, Width: 10, Height: 2, TotalCapacity: floatPtr(30), IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := svc.ListWarehouses(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	var conflict *apperr.ConflictError
	assert.True(t, errors.As(svc.DeleteWarehouse(ctx, wh.ID), &conflict))
}

func TestUpdateWarehouseKeepsAreasInBounds(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "Main", 20, 20, 5)
	dbtest.Area(t, db, wh.ID, "A", 10, 10, 10, 10, 3, 300)

	for _, in := range []WarehouseInput{
		{Name: "Main", Length: 5, Width: 5, Height: 1},
		{Name: "Main", Length: 19, Width: 20, Height: 5},
		{Name: "Main", Length: 20, Width: 20, Height: 2},
	} {
		_, err := svc.UpdateWarehouse(ctx, wh.ID, in)
		var v *apperr.ValidationError
		require.True(t, errors.As(err, &v), "%+v", in)
		assert.Contains(t, v.Fields["dimensions"], "A")
	}

	var stored models.Warehouse
	require.NoError(t, db.First(&stored, wh.ID).Error)
	assert.Equal(t, 20.0, stored.Length)

	updated, err := svc.UpdateWarehouse(ctx, wh.ID, WarehouseInput{Name: "Main", Length: 30, Width: 20, Height: 3})
	require.NoError(t, err)
	assert.Equal(t, 30.0, updated.Length)

	// zero leaves the axis unbounded
	_, err = svc.UpdateWarehouse(ctx, wh.ID, WarehouseInput{Name: "Main", Length: 0, Width: 0, Height: 0, TotalCapacity: floatPtr(500)})
	assert.NoError(t, err)
}

// Whatever the order of requests, the areas the service accepts never overlap.
func TestCreateAreaRandomizedNeverOverlaps(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	wh := dbtest.Warehouse(t, db, "W1", 100, 100, 10)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 120; i++ {
		_, err := svc.CreateArea(ctx, AreaInput{
			WarehouseID: wh.ID,
			Code:        fmt.Sprintf("R%03d", i),
			Name:        fmt.Sprintf("Random %d", i),
			X:           float64(rng.Intn(80)),
			Y:           float64(rng.Intn(80)),
			Length:      float64(1 + rng.Intn(20)),
			Width:       float64(1 + rng.Intn(20)),
			Height:      1,
		})
		if err != nil {
			var geo *apperr.GeometryConflictError
			var v *apperr.ValidationError
			require.True(t, errors.As(err, &geo) || errors.As(err, &v), "unexpected error: %v", err)
		}
	}

	areas, err := svc.ListAreas(ctx, AreaFilter{WarehouseID: wh.ID})
	require.NoError(t, err)
	require.NotEmpty(t, areas)
	for i := range areas {
		for j := i + 1; j < len(areas); j++ {
			assert.False(t, Overlaps(RectOf(areas[i]), RectOf(areas[j])), "%s overlaps %s", areas[i].Code, areas[j].Code)
		}
	}
}
