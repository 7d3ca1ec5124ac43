package models

import (
	"time"

	"gorm.io/gorm"
)

type VersionStatus string

const (
	VersionDraft    VersionStatus = "draft"
	VersionPending  VersionStatus = "pending_approval"
	VersionApproved VersionStatus = "approved"
	VersionRejected VersionStatus = "rejected"
)

// ProjectVersion is one proposed content edit to a project, moving through
// draft -> pending_approval -> approved/rejected. VersionNumber is monotonic
// and gap-free per project; rejected numbers are never reused.
type ProjectVersion struct {
	gorm.Model
	ProjectID     uint `gorm:"not null;uniqueIndex:idx_project_version,priority:1" json:"project_id"`
	VersionNumber int  `gorm:"not null;uniqueIndex:idx_project_version,priority:2" json:"version_number"`

	Status        VersionStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	DataSnapshot  string        `gorm:"type:text" json:"data_snapshot"`
	ChangeSummary string        `gorm:"type:text" json:"change_summary"`
	IsCurrent     bool          `gorm:"not null;default:false" json:"is_current"`

	CreatedBy       uint       `gorm:"not null" json:"created_by"`
	SubmittedBy     *uint      `json:"submitted_by"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	ApprovedBy      *uint      `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	RejectedBy      *uint      `json:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason"`
}
