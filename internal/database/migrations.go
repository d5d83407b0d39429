package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/memevote/internal/memes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationActivateConfirmedSubmissions = "2026-10-01_activate_confirmed_submissions"

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
		{name: migrationActivateConfirmedSubmissions, apply: activateConfirmedSubmissions},
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

// activateConfirmedSubmissions promotes rows that carry both a mint and a
// creation transaction but were left pending by earlier insert-only writers.
func activateConfirmedSubmissions(db *gorm.DB) error {
	return db.Model(&memes.Submission{}).
		Where("status = ? AND token_mint IS NOT NULL AND token_mint <> '' AND creation_tx IS NOT NULL AND creation_tx <> ''", memes.StatusPending).
		Update("status", memes.StatusActive).Error
}
