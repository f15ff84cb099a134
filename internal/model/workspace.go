package model

import "time"

// Workspace is the whole synced document: the forest plus its display metadata.
type Workspace struct {
	Name        string     `json:"workspaceName"`
	Logo        string     `json:"workspaceLogo"`
	Projects    []Project  `json:"projects"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// WorkspaceRecord stores one user's workspace document in the remote store.
type WorkspaceRecord struct {
	UserID      string `gorm:"primaryKey"`
	Name        string
	Logo        string
	Document    string
	LastUpdated time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
