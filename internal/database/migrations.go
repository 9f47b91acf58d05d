package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/modkit/modnotes/internal/removalreasons"
	"github.com/modkit/modnotes/internal/usernotes"
	"github.com/modkit/modnotes/internal/wikistore"
)

const migrationMarkStructuredPagesJSON = "2026-08-20_mark_structured_pages_json"

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
		{name: migrationMarkStructuredPagesJSON, apply: markStructuredPagesJSON},
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

// markStructuredPagesJSON repairs rows imported before is_json existed: the
// usernotes and toolbox pages always hold JSON.
func markStructuredPagesJSON(db *gorm.DB) error {
	return db.Model(&wikistore.Page{}).
		Where("page IN ?", []string{usernotes.PageName, removalreasons.ConfigPageName}).
		Update("is_json", true).Error
}
