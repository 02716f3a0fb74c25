package domain

import (
	"errors"
	"testing"
	"time"
)

func validKey() EnrollmentKey {
	return EnrollmentKey{UserID: "u1", ActivityID: "a1", ActivityType: "Course", BatchID: "b1"}
}

func TestEnrollmentValidate(t *testing.T) {
	t.Parallel()

	badStatus := ProgressStatus(7)

	tests := []struct {
		name      string
		mutate    func(e *Enrollment)
		wantErr   error
		wantField string
	}{
		{name: "valid", mutate: func(e *Enrollment) {}},
		{name: "blank user", mutate: func(e *Enrollment) { e.UserID = " " }, wantErr: ErrMandatoryParamMissing, wantField: "userId"},
		{name: "missing batch", mutate: func(e *Enrollment) { e.BatchID = "" }, wantErr: ErrMandatoryParamMissing, wantField: "batchId"},
		{name: "progress over 100", mutate: func(e *Enrollment) { e.Progress = 101 }, wantErr: ErrInvalidParameterValue, wantField: "progress"},
		{name: "negative progress", mutate: func(e *Enrollment) { e.Progress = -1 }, wantErr: ErrInvalidParameterValue, wantField: "progress"},
		{name: "bad status", mutate: func(e *Enrollment) { e.Status = badStatus }, wantErr: ErrInvalidParameterValue, wantField: "status"},
		{
			name:      "bad status map",
			mutate:    func(e *Enrollment) { e.StatusMap = map[string]ProgressStatus{"c1": badStatus} },
			wantErr:   ErrInvalidParameterValue,
			wantField: "statusMap",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewEnrollment(validKey(), "admin", time.Now())
			tt.mutate(&e)

			err := e.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != tt.wantField {
				t.Fatalf("Validate() error = %v, want field %s", err, tt.wantField)
			}
		})
	}
}

func TestEnrollmentUpdateValidate(t *testing.T) {
	t.Parallel()

	if err := (EnrollmentUpdate{}).Validate(); !errors.Is(err, ErrMandatoryParamMissing) {
		t.Fatalf("empty update error = %v, want ErrMandatoryParamMissing", err)
	}

	active := false
	if err := (EnrollmentUpdate{Active: &active}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	progress := 150
	if err := (EnrollmentUpdate{Progress: &progress}).Validate(); !errors.Is(err, ErrInvalidParameterValue) {
		t.Fatalf("Validate() error = %v, want ErrInvalidParameterValue", err)
	}
}

func TestEnrollmentReactivateKeepsHistory(t *testing.T) {
	t.Parallel()

	enrolledAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	e := NewEnrollment(validKey(), "admin", enrolledAt)
	e.Active = false
	e.Progress = 40

	later := enrolledAt.Add(48 * time.Hour)
	got := e.Reactivate(later)

	if !got.Active {
		t.Fatal("Reactivate() should set Active")
	}
	if got.AddedBy != "admin" || !got.EnrolledDate.Equal(enrolledAt) || got.Progress != 40 {
		t.Fatalf("Reactivate() = %+v, want prior metadata kept", got)
	}
	if !got.DateTime.Equal(later) {
		t.Fatalf("DateTime = %v, want %v", got.DateTime, later)
	}
	if e.Active {
		t.Fatal("Reactivate() must not modify the receiver")
	}
}

func TestActivityTypeSet(t *testing.T) {
	t.Parallel()

	set := ParseActivityTypeSet(" Competency Framework , course,,")
	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
	for _, in := range []string{"competency framework", "COURSE", " Course "} {
		if !set.Contains(in) {
			t.Fatalf("Contains(%q) = false, want true", in)
		}
	}
	if set.Contains("Competency Level") {
		t.Fatal("Contains(Competency Level) = true, want false")
	}
	if (ActivityTypeSet{}).Contains("Course") {
		t.Fatal("zero set should contain nothing")
	}
}

func TestActivityTypeObjectType(t *testing.T) {
	t.Parallel()

	tests := map[ActivityType]string{
		"CF":                   "Competency Framework",
		"cl":                   "Competency Level",
		"CB":                   "Course",
		"Competency Framework": "Competency Framework",
		"":                     "Content",
	}
	for in, want := range tests {
		if got := in.ObjectType(); got != want {
			t.Fatalf("ActivityType(%q).ObjectType() = %q, want %q", in, got, want)
		}
	}
}

func TestEnrollmentDeactivateKeepsProgress(t *testing.T) {
	t.Parallel()

	enrolledAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	e := NewEnrollment(validKey(), "admin", enrolledAt)
	e.Progress = 70

	later := enrolledAt.Add(24 * time.Hour)
	got := e.Deactivate(later)

	if got.Active || !got.DateTime.Equal(later) {
		t.Fatalf("Deactivate() = %+v, want inactive at %v", got, later)
	}
	if got.Progress != 70 || got.AddedBy != "admin" {
		t.Fatalf("Deactivate() = %+v, want progress and addedBy kept", got)
	}
	if !e.Active {
		t.Fatal("Deactivate() must not modify the receiver")
	}
}
