package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/capacity"
	"github.com/xelth-com/eckslot/internal/services/catalog"
	"github.com/xelth-com/eckslot/internal/services/layout"
	"github.com/xelth-com/eckslot/internal/services/placement"
)

var rule = strings.Repeat("=", 61)

func main() {
	fmt.Println("🌱 eckSLOT Demo Data Seeder")
	fmt.Println(rule)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	fmt.Println("🔨 Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	var warehouseCount int64
	db.Model(&models.Warehouse{}).Count(&warehouseCount)
	if warehouseCount > 0 {
		fmt.Printf("⚠️  Database already has %d warehouses. Clear it first? (y/N): ", warehouseCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE recommendations, optimization_jobs, placements, items, item_categories, storage_areas, warehouses RESTART IDENTITY CASCADE")
		fmt.Println("✅ Data cleared")
	}

	ctx := context.Background()
	ledger := capacity.NewLedger(db)
	layoutSvc := layout.NewService(db, ledger)
	placementSvc := placement.NewService(db, ledger)
	catalogSvc := catalog.NewService(db)

	fmt.Println()
	fmt.Println("📦 Creating demo data...")
	fmt.Println()

	// 1. Warehouse
	fmt.Println("🏭 Creating warehouse...")
	wh, err := layoutSvc.CreateWarehouse(ctx, layout.WarehouseInput{
		Name:    "Main Distribution Center",
		Address: "Industriestraße 12, Hamburg",
		Length:  40,
		Width:   25,
		Height:  8,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create warehouse: %v", err)
	}
	fmt.Printf("   ✓ Created warehouse: %s (%.0f m³)\n\n", wh.Name, wh.TotalCapacity)

	// 2. Storage areas: two shelf rows, a floor block and a cold room
	fmt.Println("📍 Creating storage areas...")
	areas := []layout.AreaInput{
		{Code: "A1", Name: "Shelf row A1", X: 1, Y: 1, Length: 10, Width: 2, Height: 4, Kind: models.AreaKindShelf},
		{Code: "A2", Name: "Shelf row A2", X: 1, Y: 5, Length: 10, Width: 2, Height: 4, Kind: models.AreaKindShelf},
		{Code: "F1", Name: "Bulk floor", X: 14, Y: 1, Length: 12, Width: 10, Height: 3, Kind: models.AreaKindFloor},
		{Code: "C1", Name: "Cold room", X: 30, Y: 15, Length: 6, Width: 6, Height: 3, Kind: models.AreaKindSpecial},
	}
	created := make(map[string]*models.StorageArea, len(areas))
	for _, in := range areas {
		in.WarehouseID = wh.ID
		area, err := layoutSvc.CreateArea(ctx, in)
		if err != nil {
			log.Printf("⚠️  Failed to create area %s: %v", in.Code, err)
			continue
		}
		created[area.Code] = area
		fmt.Printf("   ✓ Created area: %s [%s] %.1f m³\n", area.Code, area.Kind, area.Capacity)
	}
	fmt.Printf("✅ Created %d areas\n\n", len(created))

	// 3. Items, dimensions in centimetres
	fmt.Println("📦 Creating items...")
	inputs := []catalog.ItemInput{
		{Code: "PAL-EUR", Name: "Euro pallet of canned goods", Length: 120, Width: 80, Height: 100, Weight: 400, Priority: models.PriorityLow},
		{Code: "BOX-M", Name: "Medium carton", Length: 60, Width: 40, Height: 40, Weight: 12, Priority: models.PriorityMedium},
		{Code: "BOX-S", Name: "Small carton", Length: 30, Width: 20, Height: 20, Weight: 3, Priority: models.PriorityHigh},
		{Code: "GLS-01", Name: "Glassware crate", Length: 50, Width: 40, Height: 30, Weight: 8, Fragile: true, Priority: models.PriorityHigh},
		{Code: "ICE-10", Name: "Frozen goods box", Length: 40, Width: 30, Height: 30, Weight: 10, Priority: models.PriorityMedium},
	}
	items := make([]models.Item, len(inputs))
	for i, in := range inputs {
		item, err := catalogSvc.Create(ctx, in)
		if err != nil {
			log.Printf("⚠️  Failed to create item %s: %v", in.Code, err)
			continue
		}
		items[i] = *item
		fmt.Printf("   ✓ Created item: %s (%.3f m³)\n", item.Code, item.Volume())
	}
	fmt.Printf("✅ Created %d items\n\n", len(items))

	// 4. Placements
	fmt.Println("📝 Creating placements...")
	expires := time.Now().UTC().AddDate(0, 0, 5)
	placements := []struct {
		area    string
		item    int
		qty     int
		expires *time.Time
	}{
		{"F1", 0, 20, nil},
		{"A1", 1, 30, nil},
		{"A1", 2, 60, nil},
		{"A2", 3, 25, nil},
		{"C1", 4, 40, &expires},
	}
	placed := 0
	for _, p := range placements {
		area, ok := created[p.area]
		if !ok || items[p.item].ID == 0 {
			continue
		}
		pl, err := placementSvc.Create(ctx, placement.CreateRequest{
			WarehouseID: wh.ID,
			AreaID:      area.ID,
			ItemID:      items[p.item].ID,
			Quantity:    p.qty,
			ExpiresAt:   p.expires,
			CreatedBy:   "seed",
		})
		if err != nil {
			log.Printf("⚠️  Failed to place %s in %s: %v", items[p.item].Code, p.area, err)
			continue
		}
		placed++
		fmt.Printf("   ✓ Placed %d × %s in %s\n", pl.Quantity, items[p.item].Code, p.area)
	}
	fmt.Printf("✅ Created %d placements\n\n", placed)

	usage, err := ledger.WarehouseUsage(ctx, wh.ID)
	if err != nil {
		log.Printf("⚠️  Failed to compute usage: %v", err)
	}

	fmt.Println()
	fmt.Println(rule)
	fmt.Println("🎉 Demo data created successfully!")
	fmt.Println()
	fmt.Println("📊 Summary:")
	fmt.Printf("   • 1 warehouse\n")
	fmt.Printf("   • %d storage areas\n", len(created))
	fmt.Printf("   • %d items\n", len(items))
	fmt.Printf("   • %d placements\n", placed)
	if usage != nil {
		fmt.Printf("   • %.1f%% utilization\n", usage.Percentage)
	}
	fmt.Println()
	fmt.Println("🚀 Start the server:")
	fmt.Println("   go run ./cmd/api")
	fmt.Println()
	fmt.Println("🔑 Mint an operator token:")
	fmt.Println("   go run ./cmd/issue_token -id 1 -name demo")
	fmt.Println(rule)
}
