package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "missing field", err: domain.MissingField("batchId"), wantStatus: fiber.StatusBadRequest, wantCode: "MANDATORY_PARAMETER_MISSING"},
		{name: "invalid field", err: domain.InvalidField("enrollmentType", "must be open or invite-only"), wantStatus: fiber.StatusBadRequest, wantCode: "INVALID_PARAMETER_VALUE"},
		{name: "wrapped invalid activity", err: fmt.Errorf("check: %w", domain.ErrInvalidActivity), wantStatus: fiber.StatusBadRequest, wantCode: "INVALID_ACTIVITY"},
		{name: "unauthorized", err: domain.ErrUnauthorized, wantStatus: fiber.StatusForbidden, wantCode: "UNAUTHORIZED"},
		{name: "not found", err: domain.ErrNotFound, wantStatus: fiber.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "store", err: domain.ErrStore, wantStatus: fiber.StatusInternalServerError, wantCode: "STORE_ERROR"},
		{name: "fiber error", err: fiber.NewError(fiber.StatusMethodNotAllowed, "nope"), wantStatus: fiber.StatusMethodNotAllowed, wantCode: "METHOD_NOT_ALLOWED"},
		{name: "unknown", err: errors.New("boom"), wantStatus: fiber.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, code := StatusFor(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Fatalf("StatusFor() = (%d, %s), want (%d, %s)", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}
