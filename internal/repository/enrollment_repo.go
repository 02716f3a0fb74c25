package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const enrollmentInsertChunk = 500

var enrollmentKeyColumns = []clause.Column{
	{Name: "user_id"},
	{Name: "activity_id"},
	{Name: "activity_type"},
	{Name: "batch_id"},
}

var enrollmentValueColumns = []string{
	"active",
	"added_by",
	"enrolled_date",
	"status",
	"progress",
	"status_map",
	"completed_on",
	"issued_certificates",
	"date_time",
}

type EnrollmentRepository interface {
	Create(ctx context.Context, e *domain.Enrollment) error
	Update(ctx context.Context, key domain.EnrollmentKey, update domain.EnrollmentUpdate) error
	Get(ctx context.Context, key domain.EnrollmentKey) (*domain.Enrollment, error)
	Delete(ctx context.Context, key domain.EnrollmentKey) error
	BatchParticipants(ctx context.Context, activityID, activityType, batchID string, activeOnly bool) ([]string, error)
	ActiveUsersInBatch(ctx context.Context, activityID, activityType, batchID string) ([]string, error)
	ListByUser(ctx context.Context, userID string, activityIDs []string) ([]domain.Enrollment, error)
	BatchInsert(ctx context.Context, enrollments []domain.Enrollment) error
	IsUserEnrolled(ctx context.Context, key domain.EnrollmentKey) (bool, error)
}

type GormEnrollmentRepo struct {
	db *gorm.DB
}

func NewGormEnrollmentRepo(db *gorm.DB) *GormEnrollmentRepo {
	return &GormEnrollmentRepo{db: db}
}

func (r *GormEnrollmentRepo) Create(ctx context.Context, e *domain.Enrollment) error {
	if e == nil {
		return domain.MissingField("enrollment")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(enrollmentModelFromDomain(e)).Error; err != nil {
		return storeErr("create enrollment", err)
	}
	return nil
}

func (r *GormEnrollmentRepo) Update(ctx context.Context, key domain.EnrollmentKey, update domain.EnrollmentUpdate) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := update.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&UserActivityEnrolmentModel{}).
		Where(keyCondition(key)).
		Updates(enrollmentUpdateColumns(update))
	if result.Error != nil {
		return storeErr("update enrollment", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: enrollment for user %s", domain.ErrNotFound, key.UserID)
	}
	return nil
}

// Get returns nil, nil when no row exists for key.
func (r *GormEnrollmentRepo) Get(ctx context.Context, key domain.EnrollmentKey) (*domain.Enrollment, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var model UserActivityEnrolmentModel
	err := r.db.WithContext(ctx).Where(keyCondition(key)).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("read enrollment", err)
	}
	return enrollmentModelToDomain(&model), nil
}

func (r *GormEnrollmentRepo) Delete(ctx context.Context, key domain.EnrollmentKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where(keyCondition(key)).Delete(&UserActivityEnrolmentModel{}).Error; err != nil {
		return storeErr("delete enrollment", err)
	}
	return nil
}

// BatchParticipants scans the batch_id index and filters the rows in memory.
// The index spans every activity and type sharing a batch id, so the
// activity filter is required for correctness.
func (r *GormEnrollmentRepo) BatchParticipants(
	ctx context.Context,
	activityID, activityType, batchID string,
	activeOnly bool,
) ([]string, error) {
	rows, err := r.scanByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return filterParticipants(rows, activityID, activityType, activeOnly), nil
}

func (r *GormEnrollmentRepo) ActiveUsersInBatch(ctx context.Context, activityID, activityType, batchID string) ([]string, error) {
	return r.BatchParticipants(ctx, activityID, activityType, batchID, true)
}

// ListByUser returns active and inactive rows. A non-empty activityIDs narrows the result.
func (r *GormEnrollmentRepo) ListByUser(ctx context.Context, userID string, activityIDs []string) ([]domain.Enrollment, error) {
	var models []UserActivityEnrolmentModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&models).Error
	if err != nil {
		return nil, storeErr("list user enrollments", err)
	}

	rows := make([]domain.Enrollment, 0, len(models))
	for i := range models {
		rows = append(rows, *enrollmentModelToDomain(&models[i]))
	}
	return filterByActivities(rows, activityIDs), nil
}

// BatchInsert validates every record first, then upserts them in one transaction.
func (r *GormEnrollmentRepo) BatchInsert(ctx context.Context, enrollments []domain.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}

	models := make([]UserActivityEnrolmentModel, 0, len(enrollments))
	for i := range enrollments {
		if err := enrollments[i].Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		models = append(models, *enrollmentModelFromDomain(&enrollments[i]))
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   enrollmentKeyColumns,
			DoUpdates: clause.AssignmentColumns(enrollmentValueColumns),
		}).
		CreateInBatches(&models, enrollmentInsertChunk).Error
	if err != nil {
		return storeErr("batch insert enrollments", err)
	}
	return nil
}

func (r *GormEnrollmentRepo) IsUserEnrolled(ctx context.Context, key domain.EnrollmentKey) (bool, error) {
	e, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return e != nil && e.Active, nil
}

func (r *GormEnrollmentRepo) scanByBatch(ctx context.Context, batchID string) ([]domain.Enrollment, error) {
	var models []UserActivityEnrolmentModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Find(&models).Error
	if err != nil {
		return nil, storeErr("scan batch enrollments", err)
	}

	rows := make([]domain.Enrollment, 0, len(models))
	for i := range models {
		rows = append(rows, *enrollmentModelToDomain(&models[i]))
	}
	return rows, nil
}

func filterParticipants(rows []domain.Enrollment, activityID, activityType string, activeOnly bool) []string {
	userIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ActivityID != activityID || row.ActivityType != activityType {
			continue
		}
		if activeOnly && !row.Active {
			continue
		}
		userIDs = append(userIDs, row.UserID)
	}
	return userIDs
}

func filterByActivities(rows []domain.Enrollment, activityIDs []string) []domain.Enrollment {
	if len(activityIDs) == 0 {
		return rows
	}

	wanted := make(map[string]struct{}, len(activityIDs))
	for _, id := range activityIDs {
		wanted[id] = struct{}{}
	}

	filtered := make([]domain.Enrollment, 0, len(rows))
	for _, row := range rows {
		if _, ok := wanted[row.ActivityID]; ok {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func keyCondition(key domain.EnrollmentKey) map[string]any {
	return map[string]any{
		"user_id":       key.UserID,
		"activity_id":   key.ActivityID,
		"activity_type": key.ActivityType,
		"batch_id":      key.BatchID,
	}
}

func enrollmentUpdateColumns(u domain.EnrollmentUpdate) map[string]any {
	columns := make(map[string]any)
	if u.Active != nil {
		columns["active"] = *u.Active
	}
	if u.AddedBy != nil {
		columns["added_by"] = *u.AddedBy
	}
	if u.EnrolledDate != nil {
		columns["enrolled_date"] = *u.EnrolledDate
	}
	if u.Status != nil {
		columns["status"] = int(*u.Status)
	}
	if u.Progress != nil {
		columns["progress"] = *u.Progress
	}
	if u.StatusMap != nil {
		columns["status_map"] = datatypes.NewJSONType(u.StatusMap)
	}
	if u.CompletedOn != nil {
		columns["completed_on"] = *u.CompletedOn
	}
	if u.IssuedCertificates != nil {
		columns["issued_certificates"] = datatypes.NewJSONSlice(u.IssuedCertificates)
	}
	if u.DateTime != nil {
		columns["date_time"] = *u.DateTime
	}
	return columns
}
