package models

import (
	"time"
)

// Procedure is a generated playbook for a field task.
type Procedure struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"not null;size:255" json:"title"`
	Task      string    `gorm:"type:text;not null" json:"task"`
	Content   string    `gorm:"type:text;not null" json:"content"` // sanitised HTML
	Model     string    `gorm:"size:100" json:"model"`
	CreatedBy string    `gorm:"size:255;index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Acknowledgements []ProcedureAcknowledgement `gorm:"foreignKey:ProcedureID;constraint:OnDelete:CASCADE" json:"acknowledgements,omitempty"`
}

// TableName specifies the table name for Procedure model.
func (Procedure) TableName() string {
	return "procedures"
}

// ProcedureAcknowledgement records an employee signing off on a procedure.
type ProcedureAcknowledgement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProcedureID   string    `gorm:"size:36;not null;uniqueIndex:idx_ack_once,priority:1" json:"procedure_id"`
	EmployeeEmail string    `gorm:"size:255;not null;uniqueIndex:idx_ack_once,priority:2" json:"employee_email"`
	Signature     []byte    `json:"-"`
	SignedAt      time.Time `gorm:"not null" json:"signed_at"`
}

// TableName specifies the table name for ProcedureAcknowledgement model.
func (ProcedureAcknowledgement) TableName() string {
	return "procedure_acknowledgements"
}
