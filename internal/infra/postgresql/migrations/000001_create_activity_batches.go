package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/repository"
	"gorm.io/gorm"
)

func createActivityBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_activity_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ActivityBatchModel{}); err != nil {
				return err
			}
			// delete is keyed on batch_id alone
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_activity_batches_batch_id ON activity_batches (batch_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ActivityBatchModel{})
		},
	}
}
