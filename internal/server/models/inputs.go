package models

import "time"

// AssociationInput is an admin-supplied timeline placement. DisplayOrder is
// optional; when nil the position in the submitted list is used.
type AssociationInput struct {
	ProjectID    string `json:"project_id"`
	Category     string `json:"category"`
	Year         int    `json:"year"`
	Quarter      string `json:"quarter"`
	DisplayOrder *int   `json:"display_order,omitempty"`
}

// CreateShareInput is the payload of the create-share operation.
type CreateShareInput struct {
	Password     string             `json:"password"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
	Associations []AssociationInput `json:"associations"`
	CreatedBy    string             `json:"-"`
}

// UpdateShareInput carries the optional changes of the update-share
// operation. Nil fields are left as they are. ClearExpiry removes the expiry
// and wins over ExpiresAt.
type UpdateShareInput struct {
	Password     *string             `json:"password,omitempty"`
	Active       *bool               `json:"active,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	ClearExpiry  bool                `json:"clear_expiry,omitempty"`
	Code         *string             `json:"code,omitempty"`
	Associations *[]AssociationInput `json:"associations,omitempty"`
}

// VerifyResult is returned to a viewer who entered the right password.
type VerifyResult struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}
