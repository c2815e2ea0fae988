package migration

import (
	auditdomain "github.com/smallbiznis/packflow/internal/audit/domain"
	"github.com/smallbiznis/packflow/internal/config"
	submissiondomain "github.com/smallbiznis/packflow/internal/submission/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations are postgres-only. Other dialects exist
		// for local development and fall back to schema sync.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&submissiondomain.Submission{},
				&submissiondomain.EventRecord{},
				&auditdomain.AuditLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
