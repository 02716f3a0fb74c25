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

// EnrollmentService enrolls and unenrolls users in batches.
//
// Each user is read and decided on without a lock, so two concurrent calls
// for the same user and batch can both see the row as inactive. The stored
// active flag ends up last-write-wins and the already/not enrolled lists
// returned to racing callers are best effort.
type EnrollmentService struct {
	enrollments repository.EnrollmentRepository
	catalog     ContentCatalog
	publisher   queue.EventPublisher
	settings    config.Settings
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string
}

func NewEnrollmentService(
	enrollments repository.EnrollmentRepository,
	catalog ContentCatalog,
	publisher queue.EventPublisher,
	settings config.Settings,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*EnrollmentService, error) {
	if enrollments == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EnrollmentService{
		enrollments: enrollments,
		catalog:     catalog,
		publisher:   publisher,
		settings:    settings,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// Enroll activates every listed user. Users already active are skipped and
// reported; inactive rows are reactivated with their history intact.
func (s *EnrollmentService) Enroll(ctx context.Context, req *EnrollmentRequest, requester Requester) (*EnrollResponse, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}

	primary := s.settings.IsPrimary(req.ActivityType)
	if primary {
		if _, err := checkActivity(ctx, s.catalog, req.ActivityID, req.ActivityType); err != nil {
			return nil, err
		}
	}

	now := s.now()
	addedBy := requesterOrSystem(requester)
	userIDs := uniqueUserIDs(req.UserIDs)

	var alreadyEnrolled []string
	rows := make([]domain.Enrollment, 0, len(userIDs))
	for _, userID := range userIDs {
		key := enrollmentKey(req.ActivityID, req.ActivityType, req.BatchID, userID)
		existing, err := s.enrollments.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		switch {
		case existing != nil && existing.Active:
			alreadyEnrolled = append(alreadyEnrolled, userID)
		case existing != nil:
			rows = append(rows, existing.Reactivate(now))
		default:
			rows = append(rows, domain.NewEnrollment(key, addedBy, now))
		}
	}

	if err := s.enrollments.BatchInsert(ctx, rows); err != nil {
		return nil, err
	}
	s.metrics.AddEnrollmentChanges("enroll", len(rows))

	observability.WithContextLogger(s.logger, ctx).Info("users enrolled",
		zap.String("batchId", req.BatchID),
		zap.String("activityId", req.ActivityID),
		zap.Int("userCount", len(rows)),
		zap.Int("alreadyEnrolledCount", len(alreadyEnrolled)),
	)

	if primary && len(rows) > 0 {
		enrolled := make([]string, 0, len(rows))
		for _, row := range rows {
			enrolled = append(enrolled, row.UserID)
		}
		s.publish(ctx, queue.ActionActivityEnroll, req, enrolled, addedBy, now)
	}

	return &EnrollResponse{
		Response:             responseSuccess,
		ActivityID:           req.ActivityID,
		BatchID:              req.BatchID,
		AlreadyEnrolledUsers: alreadyEnrolled,
	}, nil
}

// Unenroll deactivates every listed active user in one write. Absent or
// inactive users are reported and not written.
func (s *EnrollmentService) Unenroll(ctx context.Context, req *EnrollmentRequest, requester Requester) (*UnenrollResponse, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}

	primary := s.settings.IsPrimary(req.ActivityType)
	if primary {
		if _, err := checkActivity(ctx, s.catalog, req.ActivityID, req.ActivityType); err != nil {
			return nil, err
		}
	}

	now := s.now()
	userIDs := uniqueUserIDs(req.UserIDs)
	rows := make([]domain.Enrollment, 0, len(userIDs))
	unenrolled := make([]string, 0, len(userIDs))
	var notEnrolled []string
	for _, userID := range userIDs {
		key := enrollmentKey(req.ActivityID, req.ActivityType, req.BatchID, userID)
		existing, err := s.enrollments.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing == nil || !existing.Active {
			notEnrolled = append(notEnrolled, userID)
			continue
		}
		rows = append(rows, existing.Deactivate(now))
		unenrolled = append(unenrolled, userID)
	}

	if err := s.enrollments.BatchInsert(ctx, rows); err != nil {
		return nil, err
	}
	s.metrics.AddEnrollmentChanges("unenroll", len(unenrolled))

	observability.WithContextLogger(s.logger, ctx).Info("users unenrolled",
		zap.String("batchId", req.BatchID),
		zap.String("activityId", req.ActivityID),
		zap.Int("userCount", len(unenrolled)),
		zap.Int("notEnrolledCount", len(notEnrolled)),
	)

	if primary && len(unenrolled) > 0 {
		s.publish(ctx, queue.ActionActivityUnenroll, req, unenrolled, requesterOrSystem(requester), now)
	}

	return &UnenrollResponse{
		Response:         responseSuccess,
		ActivityID:       req.ActivityID,
		BatchID:          req.BatchID,
		UnenrolledUsers:  unenrolled,
		NotEnrolledUsers: notEnrolled,
	}, nil
}

// ListUserEnrollments includes inactive rows. The user comes from the
// request, else from the requester.
func (s *EnrollmentService) ListUserEnrollments(
	ctx context.Context,
	req *ListEnrollmentsRequest,
	requester Requester,
) (*ListEnrollmentsResponse, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}

	userID := strings.TrimSpace(requester.UserID)
	if req.UserID != nil && strings.TrimSpace(*req.UserID) != "" {
		userID = strings.TrimSpace(*req.UserID)
	}
	if userID == "" {
		return nil, domain.MissingField("userId")
	}

	enrollments, err := s.enrollments.ListByUser(ctx, userID, req.ActivityIDs)
	if err != nil {
		return nil, err
	}
	return &ListEnrollmentsResponse{UserID: userID, Count: len(enrollments), Enrollments: enrollments}, nil
}

func (s *EnrollmentService) ListBatchParticipants(ctx context.Context, req *ParticipantsRequest) (*ParticipantsResponse, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}

	participants, err := s.enrollments.BatchParticipants(ctx, req.ActivityID, req.ActivityType, req.BatchID, req.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return &ParticipantsResponse{BatchID: req.BatchID, Participants: participants, Count: len(participants)}, nil
}

func (s *EnrollmentService) publish(
	ctx context.Context,
	action string,
	req *EnrollmentRequest,
	userIDs []string,
	requestedBy string,
	now time.Time,
) {
	key := enrollmentKey(req.ActivityID, req.ActivityType, req.BatchID, "")
	event := enrollmentEvent(action, key, userIDs, requestedBy, now, s.newID())
	publishEvent(ctx, s.publisher, s.settings.ActivityBatchTopic, event, s.logger, s.metrics)
}

func enrollmentKey(activityID, activityType, batchID, userID string) domain.EnrollmentKey {
	return domain.EnrollmentKey{
		UserID:       strings.TrimSpace(userID),
		ActivityID:   activityID,
		ActivityType: activityType,
		BatchID:      batchID,
	}
}

// uniqueUserIDs keeps the first occurrence of each trimmed id.
func uniqueUserIDs(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	unique := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

func requesterOrSystem(requester Requester) string {
	if strings.TrimSpace(requester.UserID) != "" {
		return requester.UserID
	}
	return SystemUser
}
