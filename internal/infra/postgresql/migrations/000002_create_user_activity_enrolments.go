package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/repository"
	"gorm.io/gorm"
)

func createUserActivityEnrolmentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_user_activity_enrolments",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.UserActivityEnrolmentModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_enrolments_batch_id ON user_activity_enrolments (batch_id)`,
				`CREATE INDEX IF NOT EXISTS idx_enrolments_user_id ON user_activity_enrolments (user_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.UserActivityEnrolmentModel{})
		},
	}
}
