package models

import "time"

// AccessLogEntry records a single verify attempt. Rows are insert-only and
// outlive the share they reference.
type AccessLogEntry struct {
	ID        int64     `json:"id"`
	ShareID   string    `json:"share_id,omitempty"`
	ShareCode string    `json:"share_code"`
	ClientIP  string    `json:"client_ip"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
