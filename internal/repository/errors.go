package repository

import (
	"fmt"

	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, op, err)
}
