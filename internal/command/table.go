package command

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"github.com/kursadbilgin/activity-batch-engine/internal/service"
	"github.com/kursadbilgin/activity-batch-engine/internal/validator"
)

type BatchLifecycle interface {
	CreateBatch(ctx context.Context, req *service.CreateBatchRequest, requester service.Requester, idFromCaller bool) (*service.CreateBatchResponse, error)
	UpdateBatch(ctx context.Context, req *service.UpdateBatchRequest, requester service.Requester) (*service.UpdateBatchResponse, error)
	ListBatches(ctx context.Context, req *service.ListBatchesRequest) ([]domain.Batch, error)
	DeleteBatch(ctx context.Context, req *service.DeleteBatchRequest) error
	AddCertificateTemplate(ctx context.Context, req *service.CertificateTemplateRequest) (*domain.Batch, error)
	RemoveCertificateTemplate(ctx context.Context, req *service.CertificateTemplateRequest) (*domain.Batch, error)
}

type Enrollments interface {
	Enroll(ctx context.Context, req *service.EnrollmentRequest, requester service.Requester) (*service.EnrollResponse, error)
	Unenroll(ctx context.Context, req *service.EnrollmentRequest, requester service.Requester) (*service.UnenrollResponse, error)
	ListUserEnrollments(ctx context.Context, req *service.ListEnrollmentsRequest, requester service.Requester) (*service.ListEnrollmentsResponse, error)
	ListBatchParticipants(ctx context.Context, req *service.ParticipantsRequest) (*service.ParticipantsResponse, error)
}

type BatchListResult struct {
	ActivityID string         `json:"activityId"`
	Count      int            `json:"count"`
	Batches    []domain.Batch `json:"batches"`
}

type DeleteResult struct {
	Response string `json:"response"`
	BatchID  string `json:"batchId"`
}

// NewTable registers every operation against the given services.
func NewTable(batches BatchLifecycle, enrollments Enrollments, v *validator.RequestValidator) (*Table, error) {
	if batches == nil || enrollments == nil {
		return nil, fmt.Errorf("batch and enrollment services are required")
	}
	if v == nil {
		return nil, fmt.Errorf("request validator is required")
	}

	t := &Table{handlers: make(map[Operation]handlerFunc)}

	validateCreate := func(req *service.CreateBatchRequest, _ service.Requester) error { return v.CreateBatch(req) }
	register(t, OpCreateBatch, validateCreate,
		func(ctx context.Context, req *service.CreateBatchRequest, r service.Requester) (*service.CreateBatchResponse, error) {
			return batches.CreateBatch(ctx, req, r, false)
		})
	register(t, OpPrivateCreateBatch, validateCreate,
		func(ctx context.Context, req *service.CreateBatchRequest, r service.Requester) (*service.CreateBatchResponse, error) {
			return batches.CreateBatch(ctx, req, r, true)
		})
	register(t, OpUpdateBatch,
		func(req *service.UpdateBatchRequest, _ service.Requester) error { return v.UpdateBatch(req) },
		batches.UpdateBatch)
	register(t, OpListActivityBatches,
		func(req *service.ListBatchesRequest, _ service.Requester) error { return v.ListBatches(req) },
		func(ctx context.Context, req *service.ListBatchesRequest, _ service.Requester) (*BatchListResult, error) {
			list, err := batches.ListBatches(ctx, req)
			if err != nil {
				return nil, err
			}
			return &BatchListResult{ActivityID: req.ActivityID, Count: len(list), Batches: list}, nil
		})
	register(t, OpDeleteBatch,
		func(req *service.DeleteBatchRequest, _ service.Requester) error { return v.DeleteBatch(req) },
		func(ctx context.Context, req *service.DeleteBatchRequest, _ service.Requester) (*DeleteResult, error) {
			if err := batches.DeleteBatch(ctx, req); err != nil {
				return nil, err
			}
			return &DeleteResult{Response: "SUCCESS", BatchID: req.BatchID}, nil
		})

	validateTemplate := func(req *service.CertificateTemplateRequest, _ service.Requester) error { return v.CertificateTemplate(req) }
	register(t, OpAddCertificateTemplate, validateTemplate,
		func(ctx context.Context, req *service.CertificateTemplateRequest, _ service.Requester) (*domain.Batch, error) {
			return batches.AddCertificateTemplate(ctx, req)
		})
	register(t, OpRemoveCertificateTemplate, validateTemplate,
		func(ctx context.Context, req *service.CertificateTemplateRequest, _ service.Requester) (*domain.Batch, error) {
			return batches.RemoveCertificateTemplate(ctx, req)
		})

	validateEnrollment := func(req *service.EnrollmentRequest, _ service.Requester) error { return v.Enrollment(req) }
	register(t, OpEnrollActivity, validateEnrollment, enrollments.Enroll)
	register(t, OpPrivateEnrollActivity, validateEnrollment, enrollments.Enroll)
	register(t, OpUnenrollActivity, validateEnrollment, enrollments.Unenroll)
	register(t, OpListUserActivityEnrollments, v.ListEnrollments, enrollments.ListUserEnrollments)
	register(t, OpListBatchParticipants,
		func(req *service.ParticipantsRequest, _ service.Requester) error { return v.Participants(req) },
		func(ctx context.Context, req *service.ParticipantsRequest, _ service.Requester) (*service.ParticipantsResponse, error) {
			return enrollments.ListBatchParticipants(ctx, req)
		})

	return t, nil
}
