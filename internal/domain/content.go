package domain

import (
	"fmt"
	"strings"
)

// Catalog content statuses a batch may be attached to.
const (
	ContentStatusLive     = "Live"
	ContentStatusUnlisted = "Unlisted"
)

// ActivityContent is the part of a catalog record the engine reads.
type ActivityContent struct {
	Identifier      string         `json:"identifier"`
	Status          string         `json:"status"`
	PrimaryCategory string         `json:"primaryCategory"`
	LeafNodesCount  int            `json:"leafNodesCount"`
	Batches         []BatchSummary `json:"batches"`
}

// CheckUsableFor reports why batches of activityType cannot be attached to c.
func (c *ActivityContent) CheckUsableFor(activityType string) error {
	if c == nil {
		return fmt.Errorf("%w: content not found", ErrInvalidActivity)
	}
	if !strings.EqualFold(strings.TrimSpace(c.PrimaryCategory), strings.TrimSpace(activityType)) {
		return fmt.Errorf("%w: category %q does not match %q", ErrInvalidActivity, c.PrimaryCategory, activityType)
	}
	switch c.Status {
	case ContentStatusLive, ContentStatusUnlisted:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidActivity, c.Status)
	}
	if c.LeafNodesCount <= 0 {
		return fmt.Errorf("%w: activity has no content", ErrInvalidActivity)
	}
	return nil
}

type Organisation struct {
	ID   string `json:"id"`
	Name string `json:"orgName"`
}
