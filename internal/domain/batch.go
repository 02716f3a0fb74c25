package domain

import (
	"fmt"
	"strings"
	"time"
)

// EnrollmentType controls who may join a batch.
type EnrollmentType string

const (
	EnrollmentTypeOpen       EnrollmentType = "open"
	EnrollmentTypeInviteOnly EnrollmentType = "invite-only"
)

func (t EnrollmentType) String() string { return string(t) }

func (t EnrollmentType) IsValid() bool {
	switch t {
	case EnrollmentTypeOpen, EnrollmentTypeInviteOnly:
		return true
	}
	return false
}

func ParseEnrollmentTypeFromString(s string) (EnrollmentType, error) {
	t := EnrollmentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", InvalidField("enrollmentType", fmt.Sprintf("%q is not one of open, invite-only", s))
	}
	return t, nil
}

// ProgressStatus is shared by batch status and enrollment progress.
type ProgressStatus int

const (
	ProgressNotStarted ProgressStatus = 0
	ProgressStarted    ProgressStatus = 1
	ProgressCompleted  ProgressStatus = 2
)

func (s ProgressStatus) String() string {
	switch s {
	case ProgressNotStarted:
		return "NOT_STARTED"
	case ProgressStarted:
		return "STARTED"
	case ProgressCompleted:
		return "COMPLETED"
	}
	return fmt.Sprintf("ProgressStatus(%d)", int(s))
}

func (s ProgressStatus) IsValid() bool {
	switch s {
	case ProgressNotStarted, ProgressStarted, ProgressCompleted:
		return true
	}
	return false
}

// CertTemplate holds the details of one certificate template attached to a batch.
type CertTemplate map[string]string

// Batch is a time-boxed enrollment window for an activity.
type Batch struct {
	BatchID           string                  `json:"batchId"`
	ActivityID        string                  `json:"activityId"`
	ActivityType      string                  `json:"activityType"`
	Name              string                  `json:"name"`
	Description       string                  `json:"description,omitempty"`
	CreatedBy         string                  `json:"createdBy,omitempty"`
	CreatedFor        []string                `json:"createdFor"`
	StartDate         time.Time               `json:"startDate"`
	EndDate           *time.Time              `json:"endDate,omitempty"`
	EnrollmentEndDate *time.Time              `json:"enrollmentEndDate,omitempty"`
	EnrollmentType    EnrollmentType          `json:"enrollmentType"`
	Status            ProgressStatus          `json:"status"`
	CertTemplates     map[string]CertTemplate `json:"certTemplates,omitempty"`
	CreatedDate       time.Time               `json:"createdDate"`
	UpdatedDate       *time.Time              `json:"updatedDate,omitempty"`
}

// DeriveBatchStatus compares calendar days only: a batch starting today is STARTED.
func DeriveBatchStatus(startDate, now time.Time, loc *time.Location) ProgressStatus {
	if SameDay(startDate, now, loc) {
		return ProgressStarted
	}
	return ProgressNotStarted
}

// ValidateBatchDates checks start < end and start <= enrollmentEnd <= end on calendar days.
func ValidateBatchDates(start time.Time, end, enrollmentEnd *time.Time, loc *time.Location) error {
	startDay := StartOfDay(start, loc)
	if end != nil && !startDay.Before(StartOfDay(*end, loc)) {
		return &FieldError{Field: "endDate", Reason: "must be after startDate", Err: ErrDateOrdering}
	}
	if enrollmentEnd == nil {
		return nil
	}
	enrollDay := StartOfDay(*enrollmentEnd, loc)
	if startDay.After(enrollDay) {
		return &FieldError{Field: "enrollmentEndDate", Reason: "must not be before startDate", Err: ErrDateOrdering}
	}
	if end != nil && enrollDay.After(StartOfDay(*end, loc)) {
		return &FieldError{Field: "enrollmentEndDate", Reason: "must not be after endDate", Err: ErrDateOrdering}
	}
	return nil
}

// NormalizeDates stores startDate at start of day and the end dates at end of day.
func (b *Batch) NormalizeDates(loc *time.Location) {
	b.StartDate = StartOfDay(b.StartDate, loc)
	if b.EndDate != nil {
		end := EndOfDay(*b.EndDate, loc)
		b.EndDate = &end
	}
	if b.EnrollmentEndDate != nil {
		enrollEnd := EndOfDay(*b.EnrollmentEndDate, loc)
		b.EnrollmentEndDate = &enrollEnd
	}
}

// BatchUpdate lists the columns an update may change. Nil fields are left untouched.
type BatchUpdate struct {
	Name              *string
	Description       *string
	StartDate         *time.Time
	EndDate           *time.Time
	EnrollmentEndDate *time.Time
	EnrollmentType    *EnrollmentType
	Status            *ProgressStatus
	CreatedFor        []string
	CertTemplates     map[string]CertTemplate
	UpdatedDate       *time.Time
}

func (u BatchUpdate) IsEmpty() bool {
	return u.Name == nil &&
		u.Description == nil &&
		u.StartDate == nil &&
		u.EndDate == nil &&
		u.EnrollmentEndDate == nil &&
		u.EnrollmentType == nil &&
		u.Status == nil &&
		u.CreatedFor == nil &&
		u.CertTemplates == nil &&
		u.UpdatedDate == nil
}

// BatchSummary is the denormalized entry the content catalog keeps per batch.
type BatchSummary struct {
	BatchID           string   `json:"batchId"`
	Name              string   `json:"name"`
	CreatedFor        []string `json:"createdFor"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate,omitempty"`
	EnrollmentType    string   `json:"enrollmentType"`
	Status            int      `json:"status"`
	EnrollmentEndDate string   `json:"enrollmentEndDate,omitempty"`
}

// Summary builds the catalog entry. Without an enrollment end date the day before endDate is used.
func (b *Batch) Summary(loc *time.Location) BatchSummary {
	summary := BatchSummary{
		BatchID:        b.BatchID,
		Name:           b.Name,
		CreatedFor:     b.CreatedFor,
		StartDate:      FormatDate(b.StartDate, loc),
		EnrollmentType: b.EnrollmentType.String(),
		Status:         int(b.Status),
	}
	if summary.CreatedFor == nil {
		summary.CreatedFor = []string{}
	}
	if b.EndDate != nil {
		summary.EndDate = FormatDate(*b.EndDate, loc)
	}
	switch {
	case b.EnrollmentEndDate != nil:
		summary.EnrollmentEndDate = FormatDate(*b.EnrollmentEndDate, loc)
	case b.EndDate != nil:
		summary.EnrollmentEndDate = FormatDate(b.EndDate.AddDate(0, 0, -1), loc)
	}
	return summary
}

// MergeBatchSummary drops any entry for the same batch (case-insensitive) and appends summary.
func MergeBatchSummary(existing []BatchSummary, summary BatchSummary) []BatchSummary {
	merged := make([]BatchSummary, 0, len(existing)+1)
	for _, entry := range existing {
		if strings.EqualFold(entry.BatchID, summary.BatchID) {
			continue
		}
		merged = append(merged, entry)
	}
	return append(merged, summary)
}
