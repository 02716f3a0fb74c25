package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinProgress = 0
	MaxProgress = 100
)

// EnrollmentKey is the composite primary key of an enrollment row.
type EnrollmentKey struct {
	UserID       string `json:"userId"`
	ActivityID   string `json:"activityId"`
	ActivityType string `json:"activityType"`
	BatchID      string `json:"batchId"`
}

// Validate reports the first blank key field.
func (k EnrollmentKey) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"userId", k.UserID},
		{"activityId", k.ActivityID},
		{"activityType", k.ActivityType},
		{"batchId", k.BatchID},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return MissingField(f.name)
		}
	}
	return nil
}

// Enrollment is one user's participation state in one batch.
type Enrollment struct {
	EnrollmentKey
	Active             bool                      `json:"active"`
	AddedBy            string                    `json:"addedBy,omitempty"`
	EnrolledDate       *time.Time                `json:"enrolledDate,omitempty"`
	Status             ProgressStatus            `json:"status"`
	Progress           int                       `json:"progress"`
	StatusMap          map[string]ProgressStatus `json:"statusMap,omitempty"`
	CompletedOn        *time.Time                `json:"completedOn,omitempty"`
	IssuedCertificates []map[string]string       `json:"issuedCertificates,omitempty"`
	DateTime           *time.Time                `json:"datetime,omitempty"`
}

func (e *Enrollment) Validate() error {
	if err := e.EnrollmentKey.Validate(); err != nil {
		return err
	}
	return validateProgressFields(&e.Status, &e.Progress, e.StatusMap)
}

// NewEnrollment builds a first-time active enrollment.
func NewEnrollment(key EnrollmentKey, addedBy string, now time.Time) Enrollment {
	return Enrollment{
		EnrollmentKey: key,
		Active:        true,
		AddedBy:       addedBy,
		EnrolledDate:  &now,
		Status:        ProgressNotStarted,
		Progress:      MinProgress,
		DateTime:      &now,
	}
}

// Reactivate marks a previously inactive row active again, keeping its history.
func (e Enrollment) Reactivate(now time.Time) Enrollment {
	e.Active = true
	e.DateTime = &now
	return e
}

// Deactivate marks the row inactive. Progress and certificates are kept.
func (e Enrollment) Deactivate(now time.Time) Enrollment {
	e.Active = false
	e.DateTime = &now
	return e
}

// EnrollmentUpdate carries the optional columns of a partial enrollment update.
type EnrollmentUpdate struct {
	Active             *bool
	AddedBy            *string
	EnrolledDate       *time.Time
	Status             *ProgressStatus
	Progress           *int
	StatusMap          map[string]ProgressStatus
	CompletedOn        *time.Time
	IssuedCertificates []map[string]string
	DateTime           *time.Time
}

func (u EnrollmentUpdate) IsEmpty() bool {
	return u.Active == nil &&
		u.AddedBy == nil &&
		u.EnrolledDate == nil &&
		u.Status == nil &&
		u.Progress == nil &&
		u.StatusMap == nil &&
		u.CompletedOn == nil &&
		u.IssuedCertificates == nil &&
		u.DateTime == nil
}

func (u EnrollmentUpdate) Validate() error {
	if u.IsEmpty() {
		return MissingField("attributes")
	}
	return validateProgressFields(u.Status, u.Progress, u.StatusMap)
}

func validateProgressFields(status *ProgressStatus, progress *int, statusMap map[string]ProgressStatus) error {
	if status != nil && !status.IsValid() {
		return InvalidField("status", fmt.Sprintf("%d is not a progress status", int(*status)))
	}
	if progress != nil && (*progress < MinProgress || *progress > MaxProgress) {
		return InvalidField("progress", fmt.Sprintf("%d is outside %d..%d", *progress, MinProgress, MaxProgress))
	}
	for unit, s := range statusMap {
		if strings.TrimSpace(unit) == "" {
			return InvalidField("statusMap", "blank content id")
		}
		if !s.IsValid() {
			return InvalidField("statusMap", fmt.Sprintf("%s has invalid status %d", unit, int(s)))
		}
	}
	return nil
}
