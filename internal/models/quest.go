// Package models defines domain models for the crew operations tool.
package models

import (
	"time"
)

// Quest types. The type decides how completions are bucketed into periods.
const (
	QuestTypeDaily   = "daily"
	QuestTypeWeekly  = "weekly"
	QuestTypeMonthly = "monthly"
	QuestTypeBounty  = "bounty"
)

// Quest scopes.
const (
	QuestScopeIndividual = "individual"
	QuestScopeTeam       = "team"
)

// Quest is a quest board definition managed in owner mode.
type Quest struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"not null;size:255" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Type        string    `gorm:"size:20;not null;index" json:"type"`
	XP          int       `gorm:"column:xp;not null" json:"xp"`
	Reward      string    `gorm:"type:text" json:"reward,omitempty"`
	Scope       string    `gorm:"size:20;not null" json:"scope"`
	TargetCount int       `gorm:"not null" json:"target_count"`
	ExpiresAt   string    `gorm:"size:10" json:"expires_at,omitempty"` // YYYY-MM-DD, bounties only
	Active      bool      `gorm:"not null;index" json:"active"`
	CreatedBy   string    `gorm:"size:255" json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Quest model.
func (Quest) TableName() string {
	return "quests"
}

// IsTeam reports whether progress is tracked toward a shared target.
func (q *Quest) IsTeam() bool {
	return q.Scope == QuestScopeTeam
}

// QuestCompletion is an append-only record of a user completing a quest.
// Period is stored at completion time and never recomputed.
type QuestCompletion struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	QuestID         string    `gorm:"size:36;not null;index;uniqueIndex:idx_completion_once,priority:1" json:"quest_id"`
	CompletedBy     string    `gorm:"size:255;not null;index;uniqueIndex:idx_completion_once,priority:2" json:"completed_by"`
	CompletedByName string    `gorm:"size:255" json:"completed_by_name"`
	CompletedAt     time.Time `gorm:"not null;index" json:"completed_at"`
	Period          string    `gorm:"size:20;not null;uniqueIndex:idx_completion_once,priority:3" json:"period"`
	XP              int       `gorm:"column:xp;not null;default:0" json:"xp"`
}

// TableName specifies the table name for QuestCompletion model.
func (QuestCompletion) TableName() string {
	return "quest_completions"
}

// UserXP is the per-user XP record. Level, Streak and LastCompletionDate are
// caches of values derived from TotalXP and the completion log.
type UserXP struct {
	UserEmail          string    `gorm:"primaryKey;size:255" json:"user_email"`
	DisplayName        string    `gorm:"size:255" json:"display_name"`
	TotalXP            int       `gorm:"column:total_xp;not null;default:0" json:"total_xp"`
	Level              string    `gorm:"size:50" json:"level"`
	Streak             int       `gorm:"not null;default:0" json:"streak"`
	LastCompletionDate string    `gorm:"size:10" json:"last_completion_date,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for UserXP model.
func (UserXP) TableName() string {
	return "user_xp"
}
