package models

import "gorm.io/gorm"

// WizardSession is a client-correlated progress record for the project setup
// wizard. It gates UI step access only and is never authoritative over
// lifecycle state. Newer rows supersede older ones; nothing is deleted.
// ProjectID stays nil until the session is lazily bound to a project.
type WizardSession struct {
	gorm.Model
	SessionID   string `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	ProjectID   *uint  `gorm:"index" json:"project_id"`
	CurrentStep int    `gorm:"not null;default:1" json:"current_step"`
	StepData    string `gorm:"type:text" json:"step_data"`
	IsCompleted bool   `gorm:"not null;default:false" json:"is_completed"`
}
