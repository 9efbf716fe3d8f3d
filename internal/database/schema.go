package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"postbook/internal/config"
	"postbook/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes select between embedded SQL migrations and GORM AutoMigrate.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema will do for a given configuration.
type SchemaPlan struct {
	Mode        string
	Environment string
	SQL         bool
	AutoMigrate bool
}

// SchemaStatus is a SchemaPlan plus the state of each SQL migration.
type SchemaStatus struct {
	SchemaPlan
	Migrations []MigrationState
}

// Pending returns the migrations not yet applied.
func (s *SchemaStatus) Pending() []Migration {
	var out []Migration
	for _, st := range s.Migrations {
		if !st.Applied {
			out = append(out, st.Migration)
		}
	}
	return out
}

func protectedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema decides between SQL migrations and AutoMigrate.
// The SQL migrations are PostgreSQL only, so SQLite is always AutoMigrated
// and never allowed in a protected environment. AutoMigrate against a
// protected Postgres needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode:        strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Environment: cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	protected := protectedEnv(cfg.Env)

	if cfg.DBDriver == DriverSQLite {
		if protected {
			return plan, fmt.Errorf("refusing sqlite schema management in %q", cfg.Env)
		}
		plan.AutoMigrate = true
		return plan, nil
	}

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeAuto:
		if protected && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	case SchemaModeHybrid:
		plan.SQL = true
		plan.AutoMigrate = !protected
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema brings the accounts and posts tables up to date per DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		ran, err := NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "sql migrations up to date", slog.Int("applied", len(ran)))
	}

	if plan.AutoMigrate {
		if plan.Mode == SchemaModeAuto && protectedEnv(cfg.Env) {
			middleware.Logger.WarnContext(ctx, "AutoMigrate against a protected environment", slog.String("env", cfg.Env))
		}
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "auto-migrate complete", slog.String("driver", db.Dialector.Name()))
	}
	return nil
}

// Status reports the plan and, when SQL migrations are in play, which have run.
// It never changes the database.
func Status(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.SQL {
		return status, nil
	}
	if status.Migrations, err = NewMigrator(db).Status(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
