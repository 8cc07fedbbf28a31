package models

import "time"

// RecommendationStatus is the approval state of a recommendation
type RecommendationStatus string

const (
	RecommendationPending     RecommendationStatus = "pending"
	RecommendationApproved    RecommendationStatus = "approved"
	RecommendationRejected    RecommendationStatus = "rejected"
	RecommendationImplemented RecommendationStatus = "implemented"
)

// Valid reports whether s is a known recommendation status
func (s RecommendationStatus) Valid() bool {
	switch s {
	case RecommendationPending, RecommendationApproved, RecommendationRejected, RecommendationImplemented:
		return true
	}
	return false
}

// Recommendation is a solver-proposed placement awaiting review
type Recommendation struct {
	ID            uint                 `gorm:"primaryKey" json:"id"`
	JobID         uint                 `gorm:"not null;index" json:"job_id"`
	ItemID        uint                 `gorm:"not null;index" json:"item_id"`
	CurrentAreaID *uint                `gorm:"index" json:"current_area_id,omitempty"`
	TargetAreaID  uint                 `gorm:"not null;index" json:"target_area_id"`
	TargetX       *float64             `json:"target_x,omitempty"`
	TargetY       *float64             `json:"target_y,omitempty"`
	Reason        string               `gorm:"type:text;not null" json:"reason"`
	Confidence    float64              `gorm:"not null" json:"confidence"`
	Priority      Priority             `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Algorithm     string               `gorm:"type:varchar(100);not null;default:'Manual'" json:"algorithm"`
	Status        RecommendationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Note          string               `gorm:"type:text" json:"note,omitempty"`
	ApprovedBy    string               `gorm:"type:varchar(100)" json:"approved_by,omitempty"`
	ApprovedAt    *time.Time           `json:"approved_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`

	Job         *OptimizationJob `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Item        *Item            `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	CurrentArea *StorageArea     `gorm:"foreignKey:CurrentAreaID" json:"current_area,omitempty"`
	TargetArea  *StorageArea     `gorm:"foreignKey:TargetAreaID" json:"target_area,omitempty"`
}

// TableName specifies the table name for Recommendation model
func (Recommendation) TableName() string {
	return "recommendations"
}
