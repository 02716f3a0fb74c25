// Package validator holds the request gates that run before any store or
// collaborator call. A RequestValidator carries no per-request state and is
// safe for concurrent use.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
	"github.com/kursadbilgin/activity-batch-engine/internal/service"
)

type RequestValidator struct {
	validate *playground.Validate
	loc      *time.Location
	now      func() time.Time
}

func New(loc *time.Location, now func() time.Time) (*RequestValidator, error) {
	if loc == nil {
		return nil, fmt.Errorf("location is required")
	}
	if now == nil {
		now = time.Now
	}

	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		return nil, fmt.Errorf("register notblank: %w", err)
	}

	return &RequestValidator{validate: v, loc: loc, now: now}, nil
}

func (v *RequestValidator) CreateBatch(req *service.CreateBatchRequest) error {
	if err := v.structFields(req); err != nil {
		return err
	}
	if _, err := domain.ParseEnrollmentTypeFromString(req.EnrollmentType); err != nil {
		return err
	}
	if err := v.batchDates(req.StartDate, req.EndDate, req.EnrollmentEndDate); err != nil {
		return err
	}
	return checkOrgIDs(req.CreatedFor)
}

func (v *RequestValidator) UpdateBatch(req *service.UpdateBatchRequest) error {
	if err := v.structFields(req); err != nil {
		return err
	}
	if _, err := domain.ParseEnrollmentTypeFromString(req.EnrollmentType); err != nil {
		return err
	}
	if req.Status != nil && !domain.ProgressStatus(*req.Status).IsValid() {
		return domain.InvalidField("status", fmt.Sprintf("%d is not a progress status", *req.Status))
	}
	if err := v.batchDates(req.StartDate, req.EndDate, req.EnrollmentEndDate); err != nil {
		return err
	}
	return checkOrgIDs(req.CreatedFor)
}

func (v *RequestValidator) ListBatches(req *service.ListBatchesRequest) error {
	return v.structFields(req)
}

func (v *RequestValidator) DeleteBatch(req *service.DeleteBatchRequest) error {
	return v.structFields(req)
}

func (v *RequestValidator) CertificateTemplate(req *service.CertificateTemplateRequest) error {
	return v.structFields(req)
}

func (v *RequestValidator) Enrollment(req *service.EnrollmentRequest) error {
	return v.structFields(req)
}

func (v *RequestValidator) Participants(req *service.ParticipantsRequest) error {
	return v.structFields(req)
}

// ListEnrollments needs a user id from the request or, failing that, the requester.
func (v *RequestValidator) ListEnrollments(req *service.ListEnrollmentsRequest, requester service.Requester) error {
	if req == nil {
		return domain.MissingField("request")
	}
	if req.UserID != nil && strings.TrimSpace(*req.UserID) != "" {
		return nil
	}
	if strings.TrimSpace(requester.UserID) == "" {
		return domain.MissingField("userId")
	}
	return nil
}

// batchDates checks format, that start is not in the past, and ordering.
func (v *RequestValidator) batchDates(start string, end, enrollmentEnd *string) error {
	startDate, err := domain.ParseDate(start, v.loc)
	if err != nil {
		return domain.InvalidField("startDate", err.Error())
	}
	if startDate.Before(domain.StartOfDay(v.now(), v.loc)) {
		return &domain.FieldError{Field: "startDate", Reason: "must not be in the past", Err: domain.ErrDateOrdering}
	}

	endDate, err := optionalDate("endDate", end, v.loc)
	if err != nil {
		return err
	}
	enrollEnd, err := optionalDate("enrollmentEndDate", enrollmentEnd, v.loc)
	if err != nil {
		return err
	}
	return domain.ValidateBatchDates(startDate, endDate, enrollEnd, v.loc)
}

func (v *RequestValidator) structFields(req any) error {
	if req == nil || reflect.ValueOf(req).IsNil() {
		return domain.MissingField("request")
	}
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.InvalidField("request", err.Error())
	}
	return translate(fieldErrs[0])
}

func translate(fe playground.FieldError) error {
	field := fe.Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		return domain.InvalidField(field[:i], "contains a blank value")
	}
	switch fe.Tag() {
	case "notblank", "required", "min":
		return domain.MissingField(field)
	}
	return domain.InvalidField(field, fmt.Sprintf("failed %s check", fe.Tag()))
}

func optionalDate(field string, value *string, loc *time.Location) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(*value, loc)
	if err != nil {
		return nil, domain.InvalidField(field, err.Error())
	}
	return &d, nil
}

func checkOrgIDs(orgIDs []string) error {
	for _, id := range orgIDs {
		if strings.TrimSpace(id) == "" {
			return domain.InvalidField("createdFor", "contains a blank organisation id")
		}
	}
	return nil
}

func notBlank(fl playground.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() == reflect.String {
		return strings.TrimSpace(field.String()) != ""
	}
	return !field.IsZero()
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}
