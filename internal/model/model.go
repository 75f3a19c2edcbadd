package model

import (
	"strings"
	"time"
)

// Platform is the channel a content item is published on.
type Platform string

const (
	PlatformSocial Platform = "social"
	PlatformEmail  Platform = "email"
	PlatformBlog   Platform = "blog"
)

// Status is the publishing state of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPosted    Status = "posted"
)

// ParsePlatform coerces free text into the closed platform set. Anything
// unrecognized (including empty) becomes PlatformSocial.
func ParsePlatform(s string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformEmail:
		return PlatformEmail
	case PlatformBlog:
		return PlatformBlog
	default:
		return PlatformSocial
	}
}

// ParseStatus coerces free text into the closed status set. Anything
// unrecognized (including empty) becomes StatusDraft.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPosted:
		return StatusPosted
	case StatusScheduled:
		return StatusScheduled
	default:
		return StatusDraft
	}
}

// ContentItem is a schedulable piece of content as stored by the content
// backend. Zero timestamps mean "absent".
type ContentItem struct {
	ID            string    `json:"id,omitempty" db:"id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description,omitempty" db:"description"`
	Platform      Platform  `json:"platform" db:"platform"`
	Status        Status    `json:"status" db:"status"`
	ScheduledDate time.Time `json:"scheduledDate" db:"scheduled_date"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// CandidateItem is a decoded item that has not been created yet. It only
// lives for the duration of one import.
type CandidateItem struct {
	Title         string
	Description   string
	Platform      Platform
	Status        Status
	ScheduledDate time.Time
}
