package models

import "time"

// ProjectSummary is the per-project card shown on a timeline.
type ProjectSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// ProjectFile describes a stored file of a project. The blob itself lives in
// object storage under StorageKey; URL is a presigned link filled on read.
type ProjectFile struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"-"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"-"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectDetail is a project with all of its files.
type ProjectDetail struct {
	ProjectSummary
	Files []ProjectFile `json:"files"`
}

// TimelineRow is one association joined with its project metadata, as
// loaded by the timeline builder. ThumbnailKey is the storage key of the
// project's earliest file, empty when the project has no files.
type TimelineRow struct {
	Category     string
	Year         int
	Quarter      string
	DisplayOrder int
	ProjectID    string
	Title        string
	Description  string
	ThumbnailKey string
}
