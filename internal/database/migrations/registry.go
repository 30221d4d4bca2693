// Package migrations provides database migration management for vidsyncd.
package migrations

import (
	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002DefaultConfig(),
		migration003PurgeOrphanPages(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				// Source discriminants, one table per kind.
				&models.SourceFavorite{},
				&models.SourceCollection{},
				&models.SourceSubmission{},
				&models.SourceWatchLater{},
				&models.SourceBangumi{},

				// Content
				&models.Video{},
				&models.Page{},

				// Session state
				&models.Credential{},
				&models.ConfigKV{},

				// Scheduler
				&models.Job{},
				&models.JobHistory{},
			)
		},
		Down: func(tx *gorm.DB) error {
			tables := []string{
				"job_history",
				"jobs",
				"config_kv",
				"credential",
				"page",
				"video",
				"source_bangumi",
				"source_watch_later",
				"source_submission",
				"source_collection",
				"source_favorite",
			}
			for _, table := range tables {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// migration002DefaultConfig inserts the default config_kv rows a fresh
// install needs before its first scheduler tick.
func migration002DefaultConfig() Migration {
	defaults := map[string]string{
		"schema_version":    "1",
		"scan_concurrency":  "4",
		"download_base_dir": "",
	}

	return Migration{
		Version:     "002",
		Description: "Insert default configuration values",
		Up: func(tx *gorm.DB) error {
			for key, value := range defaults {
				row := models.ConfigKV{Key: key, Value: value, UpdatedAt: models.Now()}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(tx *gorm.DB) error {
			keys := make([]string, 0, len(defaults))
			for key := range defaults {
				keys = append(keys, key)
			}
			return tx.Where("key IN ?", keys).Delete(&models.ConfigKV{}).Error
		},
	}
}

// migration003PurgeOrphanPages removes page rows whose parent video no
// longer exists, a state that can arise from a daemon killed mid-delete
// before the database gained a foreign key on page.video_id.
func migration003PurgeOrphanPages() Migration {
	return Migration{
		Version:     "003",
		Description: "Purge page rows with no matching video",
		Up: func(tx *gorm.DB) error {
			return tx.Exec(`DELETE FROM page WHERE video_id NOT IN (SELECT id FROM video)`).Error
		},
		Down: func(tx *gorm.DB) error {
			// Deleted rows cannot be reconstructed; this migration is one-way.
			return nil
		},
	}
}
