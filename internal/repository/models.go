package repository

import (
	"time"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"gorm.io/datatypes"
)

// ActivityBatchModel is the persistence model for the activity_batches table.
type ActivityBatchModel struct {
	ActivityID        string                                           `gorm:"type:varchar(100);primaryKey"`
	BatchID           string                                           `gorm:"type:varchar(100);primaryKey"`
	ActivityType      string                                           `gorm:"type:varchar(100);not null"`
	Name              string                                           `gorm:"type:varchar(255);not null"`
	Description       string                                           `gorm:"type:text"`
	CreatedBy         string                                           `gorm:"type:varchar(100)"`
	CreatedFor        datatypes.JSONSlice[string]                      `gorm:"type:jsonb"`
	StartDate         time.Time                                        `gorm:"type:timestamptz;not null"`
	EndDate           *time.Time                                       `gorm:"type:timestamptz"`
	EnrollmentEndDate *time.Time                                       `gorm:"type:timestamptz"`
	EnrollmentType    domain.EnrollmentType                            `gorm:"type:varchar(20);not null"`
	Status            int                                              `gorm:"not null;default:0"`
	CertTemplates     datatypes.JSONType[map[string]domain.CertTemplate] `gorm:"type:jsonb"`
	Participants      datatypes.JSONSlice[string]                      `gorm:"type:jsonb"`
	CreatedDate       time.Time                                        `gorm:"type:timestamptz;not null"`
	UpdatedDate       *time.Time                                       `gorm:"type:timestamptz"`
}

func (ActivityBatchModel) TableName() string {
	return "activity_batches"
}

// UserActivityEnrolmentModel is the persistence model for user_activity_enrolments.
type UserActivityEnrolmentModel struct {
	UserID             string                                             `gorm:"type:varchar(100);primaryKey"`
	ActivityID         string                                             `gorm:"type:varchar(100);primaryKey"`
	ActivityType       string                                             `gorm:"type:varchar(100);primaryKey"`
	BatchID            string                                             `gorm:"type:varchar(100);primaryKey"`
	Active             bool                                               `gorm:"not null;default:false"`
	AddedBy            string                                             `gorm:"type:varchar(100)"`
	EnrolledDate       *time.Time                                         `gorm:"type:timestamptz"`
	Status             int                                                `gorm:"not null;default:0"`
	Progress           int                                                `gorm:"not null;default:0"`
	StatusMap          datatypes.JSONType[map[string]domain.ProgressStatus] `gorm:"type:jsonb"`
	CompletedOn        *time.Time                                         `gorm:"type:timestamptz"`
	IssuedCertificates datatypes.JSONSlice[map[string]string]             `gorm:"type:jsonb"`
	DateTime           *time.Time                                         `gorm:"column:date_time;type:timestamptz"`
}

func (UserActivityEnrolmentModel) TableName() string {
	return "user_activity_enrolments"
}

// The participants aggregate is internal to the store and never mapped out.
func batchModelFromDomain(b *domain.Batch) *ActivityBatchModel {
	if b == nil {
		return nil
	}

	return &ActivityBatchModel{
		ActivityID:        b.ActivityID,
		BatchID:           b.BatchID,
		ActivityType:      b.ActivityType,
		Name:              b.Name,
		Description:       b.Description,
		CreatedBy:         b.CreatedBy,
		CreatedFor:        datatypes.NewJSONSlice(nonNilStrings(b.CreatedFor)),
		StartDate:         b.StartDate,
		EndDate:           b.EndDate,
		EnrollmentEndDate: b.EnrollmentEndDate,
		EnrollmentType:    b.EnrollmentType,
		Status:            int(b.Status),
		CertTemplates:     datatypes.NewJSONType(nonNilTemplates(b.CertTemplates)),
		CreatedDate:       b.CreatedDate,
		UpdatedDate:       b.UpdatedDate,
	}
}

func batchModelToDomain(m *ActivityBatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		BatchID:           m.BatchID,
		ActivityID:        m.ActivityID,
		ActivityType:      m.ActivityType,
		Name:              m.Name,
		Description:       m.Description,
		CreatedBy:         m.CreatedBy,
		CreatedFor:        nonNilStrings(m.CreatedFor),
		StartDate:         m.StartDate,
		EndDate:           m.EndDate,
		EnrollmentEndDate: m.EnrollmentEndDate,
		EnrollmentType:    m.EnrollmentType,
		Status:            domain.ProgressStatus(m.Status),
		CertTemplates:     nonNilTemplates(m.CertTemplates.Data()),
		CreatedDate:       m.CreatedDate,
		UpdatedDate:       m.UpdatedDate,
	}
}

func enrollmentModelFromDomain(e *domain.Enrollment) *UserActivityEnrolmentModel {
	if e == nil {
		return nil
	}

	return &UserActivityEnrolmentModel{
		UserID:             e.UserID,
		ActivityID:         e.ActivityID,
		ActivityType:       e.ActivityType,
		BatchID:            e.BatchID,
		Active:             e.Active,
		AddedBy:            e.AddedBy,
		EnrolledDate:       e.EnrolledDate,
		Status:             int(e.Status),
		Progress:           e.Progress,
		StatusMap:          datatypes.NewJSONType(e.StatusMap),
		CompletedOn:        e.CompletedOn,
		IssuedCertificates: datatypes.NewJSONSlice(e.IssuedCertificates),
		DateTime:           e.DateTime,
	}
}

func enrollmentModelToDomain(m *UserActivityEnrolmentModel) *domain.Enrollment {
	if m == nil {
		return nil
	}

	return &domain.Enrollment{
		EnrollmentKey: domain.EnrollmentKey{
			UserID:       m.UserID,
			ActivityID:   m.ActivityID,
			ActivityType: m.ActivityType,
			BatchID:      m.BatchID,
		},
		Active:             m.Active,
		AddedBy:            m.AddedBy,
		EnrolledDate:       m.EnrolledDate,
		Status:             domain.ProgressStatus(m.Status),
		Progress:           m.Progress,
		StatusMap:          m.StatusMap.Data(),
		CompletedOn:        m.CompletedOn,
		IssuedCertificates: m.IssuedCertificates,
		DateTime:           m.DateTime,
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilTemplates(templates map[string]domain.CertTemplate) map[string]domain.CertTemplate {
	if templates == nil {
		return map[string]domain.CertTemplate{}
	}
	return templates
}
