// Package dbtest opens throwaway databases for service tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/gorm"
)

// Open returns a migrated SQLite-backed DB living in t.TempDir()
func Open(t testing.TB) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "eckslot.db")
	gdb, err := gorm.Open(sqlite.Open(path), database.GormConfig(true))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// one connection keeps transactions and plain queries serialized
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.Wrap(gdb)
	require.NoError(t, db.Migrate())
	return db
}

// Warehouse inserts an active warehouse with the given footprint
func Warehouse(t testing.TB, db *database.DB, name string, length, width, height float64) *models.Warehouse {
	t.Helper()
	w := &models.Warehouse{
		Name:          name,
		Length:        length,
		Width:         width,
		Height:        height,
		TotalCapacity: length * width * height,
		IsActive:      true,
	}
	require.NoError(t, db.Create(w).Error)
	return w
}

// Area inserts a storage area directly, bypassing geometry validation
func Area(t testing.TB, db *database.DB, warehouseID uint, code string, x, y, length, width, height, capacity float64) *models.StorageArea {
	t.Helper()
	a := &models.StorageArea{
		WarehouseID: warehouseID,
		Code:        code,
		Name:        code,
		X:           x,
		Y:           y,
		Length:      length,
		Width:       width,
		Height:      height,
		Capacity:    capacity,
		Kind:        models.AreaKindShelf,
		IsAvailable: true,
		Version:     1,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

// Item inserts an active item with dimensions in centimetres
func Item(t testing.TB, db *database.DB, code string, length, width, height float64) *models.Item {
	t.Helper()
	i := &models.Item{
		Code:     code,
		Name:     code,
		Length:   length,
		Width:    width,
		Height:   height,
		Priority: models.PriorityMedium,
		IsActive: true,
	}
	require.NoError(t, db.Create(i).Error)
	return i
}

// CubeItem inserts an item occupying exactly one cubic metre
func CubeItem(t testing.TB, db *database.DB, code string) *models.Item {
	t.Helper()
	return Item(t, db, code, 100, 100, 100)
}
