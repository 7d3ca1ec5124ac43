package models

import (
	"time"

	"gorm.io/gorm"
)

type WorkflowStatus string
type LifecycleStatus string

const (
	WorkflowInitiated WorkflowStatus = "initiated"
	WorkflowAssigned  WorkflowStatus = "assigned"
	WorkflowFinalized WorkflowStatus = "finalized"
	WorkflowActive    WorkflowStatus = "active"
	WorkflowOnHold    WorkflowStatus = "on_hold"
	WorkflowComplete  WorkflowStatus = "complete"
	WorkflowArchived  WorkflowStatus = "archived"

	LifecyclePlanning LifecycleStatus = "planning"
	LifecycleActive   LifecycleStatus = "active"
	LifecycleOnHold   LifecycleStatus = "on_hold"
	LifecycleComplete LifecycleStatus = "complete"
	LifecycleArchived LifecycleStatus = "archived"
)

// Project carries two statuses: WorkflowStatus is the position in the
// initiate/assign/finalize pipeline, LifecycleStatus the coarser operational
// phase. LifecycleStatus flips planning->active together with finalization.
//
// Invariants: AssignedPM/AssignedSPM are set only once WorkflowStatus has
// reached assigned; FinalizedBy/FinalizedAt only once finalized.
type Project struct {
	gorm.Model
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	WorkflowStatus  WorkflowStatus  `gorm:"type:varchar(32);not null;index" json:"workflow_status"`
	LifecycleStatus LifecycleStatus `gorm:"type:varchar(32);not null" json:"lifecycle_status"`

	CreatedBy   uint  `gorm:"not null;index" json:"created_by"`
	AssignedPM  *uint `gorm:"index" json:"assigned_pm"`
	AssignedSPM *uint `gorm:"index" json:"assigned_spm"`
	AssignedBy  *uint `json:"assigned_by"`

	FinalizedBy *uint      `json:"finalized_by"`
	FinalizedAt *time.Time `json:"finalized_at"`

	// points at the approved version whose snapshot the project reflects
	CurrentVersionID *uint `json:"current_version_id"`

	EstimatedBudget float64    `gorm:"default:0" json:"estimated_budget"`
	Category        string     `gorm:"size:100" json:"category"`
	Region          string     `gorm:"size:100" json:"region"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
}
