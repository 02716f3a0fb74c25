package service

import "github.com/kursadbilgin/activity-batch-engine/internal/domain"

// Requester identifies the authenticated caller of an operation.
type Requester struct {
	UserID string
}

type CreateBatchRequest struct {
	// BatchID is honoured only by the private create variant.
	BatchID           *string                        `json:"batchId,omitempty"`
	ActivityID        string                         `json:"activityId" validate:"notblank"`
	ActivityType      string                         `json:"activityType" validate:"notblank"`
	Name              string                         `json:"name" validate:"notblank"`
	Description       *string                        `json:"description,omitempty"`
	CreatedBy         *string                        `json:"createdBy,omitempty"`
	CreatedFor        []string                       `json:"createdFor,omitempty"`
	StartDate         string                         `json:"startDate" validate:"notblank"`
	EndDate           *string                        `json:"endDate,omitempty"`
	EnrollmentEndDate *string                        `json:"enrollmentEndDate,omitempty"`
	EnrollmentType    string                         `json:"enrollmentType" validate:"notblank"`
	CertTemplates     map[string]domain.CertTemplate `json:"certTemplates,omitempty"`
}

type UpdateBatchRequest struct {
	BatchID           string                         `json:"batchId" validate:"notblank"`
	ActivityID        string                         `json:"activityId" validate:"notblank"`
	ActivityType      string                         `json:"activityType" validate:"notblank"`
	Name              string                         `json:"name" validate:"notblank"`
	Description       *string                        `json:"description,omitempty"`
	CreatedFor        []string                       `json:"createdFor,omitempty"`
	StartDate         string                         `json:"startDate" validate:"notblank"`
	EndDate           *string                        `json:"endDate,omitempty"`
	EnrollmentEndDate *string                        `json:"enrollmentEndDate,omitempty"`
	EnrollmentType    string                         `json:"enrollmentType" validate:"notblank"`
	Status            *int                           `json:"status,omitempty"`
	CertTemplates     map[string]domain.CertTemplate `json:"certTemplates,omitempty"`
}

type ListBatchesRequest struct {
	ActivityID   string `json:"activityId" validate:"notblank"`
	ActivityType string `json:"activityType,omitempty"`
}

type DeleteBatchRequest struct {
	BatchID string `json:"batchId" validate:"notblank"`
}

type CertificateTemplateRequest struct {
	ActivityID string              `json:"activityId" validate:"notblank"`
	BatchID    string              `json:"batchId" validate:"notblank"`
	TemplateID string              `json:"templateId" validate:"notblank"`
	Details    domain.CertTemplate `json:"details,omitempty"`
}

type EnrollmentRequest struct {
	ActivityID   string   `json:"activityId" validate:"notblank"`
	ActivityType string   `json:"activityType" validate:"notblank"`
	BatchID      string   `json:"batchId" validate:"notblank"`
	UserIDs      []string `json:"userIds" validate:"required,min=1,dive,notblank"`
}

type ListEnrollmentsRequest struct {
	UserID      *string  `json:"userId,omitempty"`
	ActivityIDs []string `json:"activityIds,omitempty"`
}

type ParticipantsRequest struct {
	ActivityID   string `json:"activityId" validate:"notblank"`
	ActivityType string `json:"activityType" validate:"notblank"`
	BatchID      string `json:"batchId" validate:"notblank"`
	ActiveOnly   bool   `json:"activeOnly,omitempty"`
}

type CreateBatchResponse struct {
	BatchID string       `json:"batchId"`
	Batch   domain.Batch `json:"-"`
}

type UpdateBatchResponse struct {
	BatchID string       `json:"batchId"`
	Batch   domain.Batch `json:"-"`
}

type EnrollResponse struct {
	Response             string   `json:"response"`
	ActivityID           string   `json:"activityId"`
	BatchID              string   `json:"batchId"`
	AlreadyEnrolledUsers []string `json:"alreadyEnrolledUsers,omitempty"`
}

type UnenrollResponse struct {
	Response         string   `json:"response"`
	ActivityID       string   `json:"activityId"`
	BatchID          string   `json:"batchId"`
	UnenrolledUsers  []string `json:"unenrolledUsers"`
	NotEnrolledUsers []string `json:"notEnrolledUsers,omitempty"`
}

type ListEnrollmentsResponse struct {
	UserID      string              `json:"userId"`
	Count       int                 `json:"count"`
	Enrollments []domain.Enrollment `json:"enrollments"`
}

type ParticipantsResponse struct {
	BatchID      string   `json:"batchId"`
	Participants []string `json:"participants"`
	Count        int      `json:"count"`
}

const responseSuccess = "SUCCESS"
