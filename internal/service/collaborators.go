package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
)

// Catalog fields read when checking an activity and merging its batch list.
var (
	activityCheckFields = []string{"status", "primaryCategory", "leafNodesCount", "batches"}
	activityBatchFields = []string{"batches"}
)

// ContentCatalog is the system of record for activity metadata.
// GetContent returns nil, nil when the activity does not exist.
type ContentCatalog interface {
	GetContent(ctx context.Context, activityID string, fields []string) (*domain.ActivityContent, error)
	UpdateCollection(ctx context.Context, activityID string, batches []domain.BatchSummary) error
}

// OrgDirectory resolves organisation ids. GetOrganisationByID returns nil, nil for unknown ids.
type OrgDirectory interface {
	GetOrganisationByID(ctx context.Context, orgID string) (*domain.Organisation, error)
}

// checkActivity fails closed: any catalog error is reported as an invalid activity.
func checkActivity(ctx context.Context, catalog ContentCatalog, activityID, activityType string) (*domain.ActivityContent, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: content catalog is not configured", domain.ErrInvalidActivity)
	}
	content, err := catalog.GetContent(ctx, activityID, activityCheckFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidActivity, activityID, err)
	}
	if err := content.CheckUsableFor(activityType); err != nil {
		return nil, fmt.Errorf("%s: %w", activityID, err)
	}
	return content, nil
}

// checkOrganisations fails closed like checkActivity. Lookups run one after another.
func checkOrganisations(ctx context.Context, orgs OrgDirectory, orgIDs []string) error {
	if len(orgIDs) == 0 {
		return nil
	}
	if orgs == nil {
		return fmt.Errorf("%w: organisation directory is not configured", domain.ErrInvalidOrg)
	}
	for _, id := range orgIDs {
		id = strings.TrimSpace(id)
		org, err := orgs.GetOrganisationByID(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidOrg, id, err)
		}
		if org == nil {
			return fmt.Errorf("%w: %s", domain.ErrInvalidOrg, id)
		}
	}
	return nil
}
