package model

import "time"

// Project is a node of the project forest. An empty ParentID marks a root.
type Project struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ParentID         string       `json:"parentId,omitempty"`
	LogoURL          string       `json:"logoUrl,omitempty"`
	Notes            string       `json:"notes"`
	Precautions      []string     `json:"precautions"`
	PrecautionsColor string       `json:"precautionsColor,omitempty"`
	Tasks            []Task       `json:"tasks"`
	Children         []Project    `json:"children"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	LastAccessedAt   *time.Time   `json:"lastAccessedAt,omitempty"`
}

// IsRoot reports whether the project has no parent.
func (p Project) IsRoot() bool {
	return p.ParentID == ""
}
