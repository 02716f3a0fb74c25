package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/activity-batch-engine/internal/config"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"github.com/kursadbilgin/activity-batch-engine/internal/observability"
	"github.com/kursadbilgin/activity-batch-engine/internal/queue"
	"github.com/kursadbilgin/activity-batch-engine/internal/repository"
	"go.uber.org/zap"
)

// SystemUser is recorded as createdBy when neither the request nor the caller names a user.
const SystemUser = "system"

type BatchService struct {
	batches   repository.BatchRepository
	catalog   ContentCatalog
	orgs      OrgDirectory
	publisher queue.EventPublisher
	settings  config.Settings
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	newID     func() string
}

func NewBatchService(
	batches repository.BatchRepository,
	catalog ContentCatalog,
	orgs OrgDirectory,
	publisher queue.EventPublisher,
	settings config.Settings,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*BatchService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if settings.Location == nil {
		return nil, fmt.Errorf("settings location is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		batches:   batches,
		catalog:   catalog,
		orgs:      orgs,
		publisher: publisher,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// CreateBatch persists a new batch. With idFromCaller a non-blank request
// batchId is used as is; otherwise an id is generated.
func (s *BatchService) CreateBatch(
	ctx context.Context,
	req *CreateBatchRequest,
	requester Requester,
	idFromCaller bool,
) (*CreateBatchResponse, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}

	primary := s.settings.IsPrimary(req.ActivityType)
	if primary {
		if _, err := checkActivity(ctx, s.catalog, req.ActivityID, req.ActivityType); err != nil {
			return nil, err
		}
	}

	loc := s.settings.Location
	now := s.now()
	dates, err := parseBatchDates(req.StartDate, req.EndDate, req.EnrollmentEndDate, loc)
	if err != nil {
		return nil, err
	}
	enrollmentType, err := domain.ParseEnrollmentTypeFromString(req.EnrollmentType)
	if err != nil {
		return nil, err
	}
	if err := checkOrganisations(ctx, s.orgs, req.CreatedFor); err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		BatchID:           s.batchID(req.BatchID, idFromCaller),
		ActivityID:        req.ActivityID,
		ActivityType:      req.ActivityType,
		Name:              req.Name,
		Description:       derefString(req.Description),
		CreatedBy:         createdBy(req.CreatedBy, requester),
		CreatedFor:        req.CreatedFor,
		StartDate:         dates.start,
		EndDate:           dates.end,
		EnrollmentEndDate: dates.enrollmentEnd,
		EnrollmentType:    enrollmentType,
		Status:            domain.DeriveBatchStatus(dates.start, now, loc),
		CertTemplates:     req.CertTemplates,
		CreatedDate:       now,
	}
	batch.NormalizeDates(loc)

	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}
	s.metrics.IncBatchWrite("create")

	logger := observability.WithContextLogger(s.logger, ctx)
	logger.Info("batch created",
		zap.String("batchId", batch.BatchID),
		zap.String("activityId", batch.ActivityID),
		zap.String("status", batch.Status.String()),
	)

	if primary {
		s.syncCatalog(ctx, batch)
		event := batchEvent(queue.ActionBatchCreate, batch, nil, loc, now, s.newID())
		publishEvent(ctx, s.publisher, s.settings.ActivityBatchTopic, event, s.logger, s.metrics)
	}

	return &CreateBatchResponse{BatchID: batch.BatchID, Batch: *batch}, nil
}

// UpdateBatch writes only the mutable columns. Status is taken from the
// request when given and is never re-derived from startDate.
func (s *BatchService) UpdateBatch(ctx context.Context, req *UpdateBatchRequest, requester Requester) (*UpdateBatchResponse, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}

	existing, err := s.batches.GetByID(ctx, req.ActivityID, req.BatchID)
	if err != nil {
		return nil, err
	}
	if s.settings.AuthEnabled && requester.UserID != existing.CreatedBy {
		return nil, fmt.Errorf("%w: %q may not update batch %s", domain.ErrUnauthorized, requester.UserID, req.BatchID)
	}

	primary := s.settings.IsPrimary(req.ActivityType)
	if primary {
		if _, err := checkActivity(ctx, s.catalog, req.ActivityID, req.ActivityType); err != nil {
			return nil, err
		}
	}
	if err := checkOrganisations(ctx, s.orgs, req.CreatedFor); err != nil {
		return nil, err
	}

	update, err := s.batchUpdate(req, existing)
	if err != nil {
		return nil, err
	}
	if err := s.batches.Update(ctx, req.ActivityID, req.BatchID, update); err != nil {
		return nil, err
	}
	s.metrics.IncBatchWrite("update")

	updated, err := s.batches.GetByID(ctx, req.ActivityID, req.BatchID)
	if err != nil {
		return nil, err
	}

	if primary {
		s.syncCatalog(ctx, updated)
		event := batchEvent(queue.ActionBatchUpdate, updated, &update, s.settings.Location, s.now(), s.newID())
		publishEvent(ctx, s.publisher, s.settings.BatchInstructionTopic, event, s.logger, s.metrics)
	}

	return &UpdateBatchResponse{BatchID: updated.BatchID, Batch: *updated}, nil
}

// ListBatches returns every batch of an activity the catalog knows about.
// A non-blank activityType narrows the result.
func (s *BatchService) ListBatches(ctx context.Context, req *ListBatchesRequest) ([]domain.Batch, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}
	if s.catalog == nil {
		return nil, fmt.Errorf("%w: content catalog is not configured", domain.ErrInvalidActivity)
	}

	content, err := s.catalog.GetContent(ctx, req.ActivityID, activityBatchFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidActivity, req.ActivityID, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: activity %s", domain.ErrNotFound, req.ActivityID)
	}

	batches, err := s.batches.ListByActivity(ctx, req.ActivityID)
	if err != nil {
		return nil, err
	}
	activityType := strings.TrimSpace(req.ActivityType)
	if activityType == "" {
		return batches, nil
	}

	filtered := make([]domain.Batch, 0, len(batches))
	for _, b := range batches {
		if strings.EqualFold(b.ActivityType, activityType) {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// DeleteBatch removes the batch rows for batchId. The catalog summary and
// enrollments are left as they are.
func (s *BatchService) DeleteBatch(ctx context.Context, req *DeleteBatchRequest) error {
	if req == nil {
		return domain.MissingField("request")
	}
	if err := s.batches.DeleteByBatchID(ctx, req.BatchID); err != nil {
		return err
	}
	s.metrics.IncBatchWrite("delete")
	observability.WithContextLogger(s.logger, ctx).Info("batch deleted", zap.String("batchId", req.BatchID))
	return nil
}

func (s *BatchService) AddCertificateTemplate(ctx context.Context, req *CertificateTemplateRequest) (*domain.Batch, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}
	if err := s.batches.AddCertificateTemplate(ctx, req.ActivityID, req.BatchID, req.TemplateID, req.Details); err != nil {
		return nil, err
	}
	s.metrics.IncBatchWrite("add_template")
	return s.batches.GetByID(ctx, req.ActivityID, req.BatchID)
}

func (s *BatchService) RemoveCertificateTemplate(ctx context.Context, req *CertificateTemplateRequest) (*domain.Batch, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}
	if err := s.batches.RemoveCertificateTemplate(ctx, req.ActivityID, req.BatchID, req.TemplateID); err != nil {
		return nil, err
	}
	s.metrics.IncBatchWrite("remove_template")
	return s.batches.GetByID(ctx, req.ActivityID, req.BatchID)
}

// syncCatalog merges the batch summary into the catalog's batch list.
// The read-merge-write is not atomic: two writers on one activity can lose
// each other's entry. A failure is logged and counted; the batch write stands.
func (s *BatchService) syncCatalog(ctx context.Context, b *domain.Batch) {
	logger := observability.WithContextLogger(s.logger, ctx)
	fail := func(msg string, err error) {
		s.metrics.IncCatalogSyncFailure()
		logger.Error(msg,
			zap.String("batchId", b.BatchID),
			zap.String("activityId", b.ActivityID),
			zap.Error(err),
		)
	}

	if s.catalog == nil {
		return
	}
	content, err := s.catalog.GetContent(ctx, b.ActivityID, activityBatchFields)
	if err != nil {
		fail("failed to read catalog batches", err)
		return
	}
	var existing []domain.BatchSummary
	if content != nil {
		existing = content.Batches
	}

	merged := domain.MergeBatchSummary(existing, b.Summary(s.settings.Location))
	if err := s.catalog.UpdateCollection(ctx, b.ActivityID, merged); err != nil {
		fail("failed to update catalog batches", err)
	}
}

func (s *BatchService) batchID(requested *string, idFromCaller bool) string {
	if idFromCaller && requested != nil && strings.TrimSpace(*requested) != "" {
		return strings.TrimSpace(*requested)
	}
	return s.newID()
}

// batchUpdate builds the allow-listed column set. Date ordering is checked
// against the stored dates for any end date the request leaves out.
func (s *BatchService) batchUpdate(req *UpdateBatchRequest, existing *domain.Batch) (domain.BatchUpdate, error) {
	loc := s.settings.Location
	dates, err := parseBatchDates(req.StartDate, req.EndDate, req.EnrollmentEndDate, loc)
	if err != nil {
		return domain.BatchUpdate{}, err
	}

	end, enrollmentEnd := dates.end, dates.enrollmentEnd
	if end == nil {
		end = existing.EndDate
	}
	if enrollmentEnd == nil {
		enrollmentEnd = existing.EnrollmentEndDate
	}
	if err := domain.ValidateBatchDates(dates.start, end, enrollmentEnd, loc); err != nil {
		return domain.BatchUpdate{}, err
	}

	enrollmentType, err := domain.ParseEnrollmentTypeFromString(req.EnrollmentType)
	if err != nil {
		return domain.BatchUpdate{}, err
	}

	normalized := domain.Batch{StartDate: dates.start, EndDate: dates.end, EnrollmentEndDate: dates.enrollmentEnd}
	normalized.NormalizeDates(loc)

	now := s.now()
	update := domain.BatchUpdate{
		Name:              stringPtr(req.Name),
		Description:       req.Description,
		StartDate:         &normalized.StartDate,
		EndDate:           normalized.EndDate,
		EnrollmentEndDate: normalized.EnrollmentEndDate,
		EnrollmentType:    &enrollmentType,
		CreatedFor:        req.CreatedFor,
		CertTemplates:     req.CertTemplates,
		UpdatedDate:       &now,
	}
	if req.Status != nil {
		status := domain.ProgressStatus(*req.Status)
		if !status.IsValid() {
			return domain.BatchUpdate{}, domain.InvalidField("status", fmt.Sprintf("%d is not a progress status", *req.Status))
		}
		update.Status = &status
	}
	return update, nil
}

type batchDates struct {
	start         time.Time
	end           *time.Time
	enrollmentEnd *time.Time
}

func parseBatchDates(start string, end, enrollmentEnd *string, loc *time.Location) (batchDates, error) {
	var dates batchDates
	var err error
	if dates.start, err = domain.ParseDate(start, loc); err != nil {
		return batchDates{}, domain.InvalidField("startDate", err.Error())
	}
	if dates.end, err = parseOptionalDate("endDate", end, loc); err != nil {
		return batchDates{}, err
	}
	if dates.enrollmentEnd, err = parseOptionalDate("enrollmentEndDate", enrollmentEnd, loc); err != nil {
		return batchDates{}, err
	}
	if err := domain.ValidateBatchDates(dates.start, dates.end, dates.enrollmentEnd, loc); err != nil {
		return batchDates{}, err
	}
	return dates, nil
}

func parseOptionalDate(field string, value *string, loc *time.Location) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(*value, loc)
	if err != nil {
		return nil, domain.InvalidField(field, err.Error())
	}
	return &d, nil
}

func createdBy(requested *string, requester Requester) string {
	if requested != nil && strings.TrimSpace(*requested) != "" {
		return strings.TrimSpace(*requested)
	}
	return requesterOrSystem(requester)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
