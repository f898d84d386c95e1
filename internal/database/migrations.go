package database

import (
	"errors"
	"time"

	"github.com/ascendlabs/ascend/backend/internal/activities"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillActivityOrigin = "2026-07-14_backfill_activity_origin"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillActivityOrigin, apply: backfillActivityOrigin},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before the origin column existed carry an empty origin;
// anything without an owner is seed data.
func backfillActivityOrigin(db *gorm.DB) error {
	if err := db.Model(&activities.Activity{}).
		Where("origin = '' AND owner_id = ''").
		Update("origin", activities.OriginDefault).Error; err != nil {
		return err
	}
	return db.Model(&activities.Activity{}).
		Where("origin = '' AND owner_id <> ''").
		Update("origin", activities.OriginCustom).Error
}
