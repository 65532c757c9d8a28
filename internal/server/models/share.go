// Package models defines server-side data models persisted in the database
// or derived from it for viewers.
package models

import "time"

// Share is a password-gated, time-bounded grouping of projects reachable by
// its public Code.
type Share struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	PasswordHash   string     `json:"-"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ViewCount      int64      `json:"view_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Associations []Association `json:"associations,omitempty"`
}

// IsExpired reports whether the share's expiry lies strictly before now.
// It is evaluated on every read and never stored.
func (s *Share) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Association places a project on a share's timeline.
type Association struct {
	ID           int64  `json:"-"`
	ShareID      string `json:"-"`
	ProjectID    string `json:"project_id"`
	Category     string `json:"category"`
	Year         int    `json:"year"`
	Quarter      string `json:"quarter"`
	DisplayOrder int    `json:"display_order"`
}
