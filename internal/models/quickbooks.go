package models

import (
	"time"
)

// QuickBooksConnection stores the OAuth tokens for a QuickBooks company.
type QuickBooksConnection struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RealmID      string    `gorm:"uniqueIndex;not null;size:64" json:"realm_id"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text;not null" json:"-"`
	TokenType    string    `gorm:"size:32" json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	ConnectedBy  string    `gorm:"size:255" json:"connected_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for QuickBooksConnection model.
func (QuickBooksConnection) TableName() string {
	return "quickbooks_connections"
}

// OAuthState is a pending authorization request.
type OAuthState struct {
	State       string    `gorm:"primaryKey;size:64" json:"state"`
	RequestedBy string    `gorm:"size:255" json:"requested_by"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for OAuthState model.
func (OAuthState) TableName() string {
	return "oauth_states"
}
