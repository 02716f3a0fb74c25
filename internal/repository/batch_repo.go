package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	Update(ctx context.Context, activityID, batchID string, update domain.BatchUpdate) error
	GetByID(ctx context.Context, activityID, batchID string) (*domain.Batch, error)
	ListByActivity(ctx context.Context, activityID string) ([]domain.Batch, error)
	DeleteByBatchID(ctx context.Context, batchID string) error
	AddCertificateTemplate(ctx context.Context, activityID, batchID, templateID string, details domain.CertTemplate) error
	RemoveCertificateTemplate(ctx context.Context, activityID, batchID, templateID string) error
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if model == nil {
		return domain.MissingField("batch")
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return storeErr("create batch", err)
	}
	*b = *batchModelToDomain(model)
	return nil
}

// Update writes only the columns set on update. Key columns cannot be changed.
func (r *GormBatchRepo) Update(ctx context.Context, activityID, batchID string, update domain.BatchUpdate) error {
	if update.IsEmpty() {
		return domain.MissingField("attributes")
	}
	columns := batchUpdateColumns(update)

	result := r.db.WithContext(ctx).
		Model(&ActivityBatchModel{}).
		Where("activity_id = ? AND batch_id = ?", activityID, batchID).
		Updates(columns)
	if result.Error != nil {
		return storeErr("update batch", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, activityID, batchID string) (*domain.Batch, error) {
	var model ActivityBatchModel
	err := r.db.WithContext(ctx).
		Where("activity_id = ? AND batch_id = ?", activityID, batchID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	if err != nil {
		return nil, storeErr("read batch", err)
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) ListByActivity(ctx context.Context, activityID string) ([]domain.Batch, error) {
	var models []ActivityBatchModel
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("created_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, storeErr("list batches", err)
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}
	return batches, nil
}

// DeleteByBatchID removes every row for batchID regardless of activity.
func (r *GormBatchRepo) DeleteByBatchID(ctx context.Context, batchID string) error {
	result := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Delete(&ActivityBatchModel{})
	if result.Error != nil {
		return storeErr("delete batch", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	return nil
}

// AddCertificateTemplate sets one key of cert_templates in place.
func (r *GormBatchRepo) AddCertificateTemplate(
	ctx context.Context,
	activityID, batchID, templateID string,
	details domain.CertTemplate,
) error {
	if strings.TrimSpace(templateID) == "" {
		return domain.MissingField("templateId")
	}
	if details == nil {
		details = domain.CertTemplate{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return domain.InvalidField("certTemplate", err.Error())
	}

	expr := gorm.Expr(
		"COALESCE(cert_templates, '{}'::jsonb) || jsonb_build_object(?::text, ?::jsonb)",
		templateID,
		string(raw),
	)
	return r.updateCertTemplates(ctx, activityID, batchID, expr)
}

// RemoveCertificateTemplate deletes one key of cert_templates in place.
func (r *GormBatchRepo) RemoveCertificateTemplate(ctx context.Context, activityID, batchID, templateID string) error {
	if strings.TrimSpace(templateID) == "" {
		return domain.MissingField("templateId")
	}
	expr := gorm.Expr("COALESCE(cert_templates, '{}'::jsonb) - ?::text", templateID)
	return r.updateCertTemplates(ctx, activityID, batchID, expr)
}

func (r *GormBatchRepo) updateCertTemplates(ctx context.Context, activityID, batchID string, expr clause.Expr) error {
	result := r.db.WithContext(ctx).
		Model(&ActivityBatchModel{}).
		Where("activity_id = ? AND batch_id = ?", activityID, batchID).
		Updates(map[string]any{
			"cert_templates": expr,
			"updated_date":   time.Now().UTC(),
		})
	if result.Error != nil {
		return storeErr("update certificate templates", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	return nil
}

func batchUpdateColumns(u domain.BatchUpdate) map[string]any {
	columns := make(map[string]any)
	if u.Name != nil {
		columns["name"] = *u.Name
	}
	if u.Description != nil {
		columns["description"] = *u.Description
	}
	if u.StartDate != nil {
		columns["start_date"] = *u.StartDate
	}
	if u.EndDate != nil {
		columns["end_date"] = *u.EndDate
	}
	if u.EnrollmentEndDate != nil {
		columns["enrollment_end_date"] = *u.EnrollmentEndDate
	}
	if u.EnrollmentType != nil {
		columns["enrollment_type"] = *u.EnrollmentType
	}
	if u.Status != nil {
		columns["status"] = int(*u.Status)
	}
	if u.CreatedFor != nil {
		columns["created_for"] = datatypes.NewJSONSlice(u.CreatedFor)
	}
	if u.CertTemplates != nil {
		columns["cert_templates"] = datatypes.NewJSONType(u.CertTemplates)
	}
	if u.UpdatedDate != nil {
		columns["updated_date"] = *u.UpdatedDate
	}
	return columns
}
