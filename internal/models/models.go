package models

// All lists every model in migration order
func All() []interface{} {
	return []interface{}{
		&Warehouse{},
		&StorageArea{},
		&ItemCategory{},
		&Item{},
		&Placement{},
		&OptimizationJob{},
		&Recommendation{},
	}
}
