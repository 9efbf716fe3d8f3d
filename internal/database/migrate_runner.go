package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"postbook/internal/middleware"

	"gorm.io/gorm"
)

// Arbitrary key shared by every process that migrates this database.
const migrationLockKey = 0x706f7374

type schemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

const createSchemaMigrationsSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

// MigrationState is a migration plus whether, and when, it was applied.
type MigrationState struct {
	Migration
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies and reverts SQL migrations, recording each applied
// version in schema_migrations.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator returns a Migrator for the embedded migrations.
func NewMigrator(db *gorm.DB) *Migrator {
	return newMigrator(db, migrations)
}

func newMigrator(db *gorm.DB, set []Migration) *Migrator {
	return &Migrator{db: db, migrations: set}
}

// Up applies every pending migration in version order and returns the ones it ran.
// Each version runs in its own transaction together with its bookkeeping row.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	if err := m.db.WithContext(ctx).Exec(createSchemaMigrationsSQL).Error; err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	records, err := m.records(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.checkKnown(records); err != nil {
		return nil, err
	}

	var ran []Migration
	for _, mig := range m.migrations {
		if _, ok := records[mig.Version]; ok {
			continue
		}
		applied, err := m.apply(ctx, mig)
		if err != nil {
			return ran, err
		}
		if applied {
			ran = append(ran, mig)
		}
	}
	return ran, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (bool, error) {
	applied := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMigrations(tx); err != nil {
			return err
		}
		// Another instance may have won the lock first.
		var n int64
		if err := tx.Model(&schemaMigration{}).Where("version = ?", mig.Version).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		if err := tx.Exec(mig.Up).Error; err != nil {
			return fmt.Errorf("migration %s: %w", mig.ID(), err)
		}
		applied = true
		return tx.Create(&schemaMigration{
			Version:   mig.Version,
			Name:      mig.Name,
			AppliedAt: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return false, err
	}
	if applied {
		middleware.Logger.InfoContext(ctx, "migration applied", slog.String("migration", mig.ID()))
	}
	return applied, nil
}

// Down reverts version, which must be the newest applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig, ok := m.find(version)
	if !ok {
		return fmt.Errorf("unknown migration version %d", version)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMigrations(tx); err != nil {
			return err
		}
		var newest int
		if err := tx.Model(&schemaMigration{}).Select("COALESCE(MAX(version), 0)").Scan(&newest).Error; err != nil {
			return err
		}
		if newest > version {
			return fmt.Errorf("migration %06d is applied on top of %s; revert it first", newest, mig.ID())
		}

		res := tx.Where("version = ?", version).Delete(&schemaMigration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("migration %s is not applied", mig.ID())
		}
		if err := tx.Exec(mig.Down).Error; err != nil {
			return fmt.Errorf("revert %s: %w", mig.ID(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "migration reverted", slog.String("migration", mig.ID()))
	return nil
}

// Status lists every known migration with its applied state. It never writes.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	records, err := m.records(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.checkKnown(records); err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(m.migrations))
	for _, mig := range m.migrations {
		rec, ok := records[mig.Version]
		states = append(states, MigrationState{Migration: mig, Applied: ok, AppliedAt: rec.AppliedAt})
	}
	return states, nil
}

func (m *Migrator) records(ctx context.Context) (map[int]schemaMigration, error) {
	db := m.db.WithContext(ctx)
	out := map[int]schemaMigration{}
	if !db.Migrator().HasTable(&schemaMigration{}) {
		return out, nil
	}

	var rows []schemaMigration
	if err := db.Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	for _, r := range rows {
		out[r.Version] = r
	}
	return out, nil
}

// checkKnown fails when the database carries versions this build does not ship,
// which means the binary is older than the schema.
func (m *Migrator) checkKnown(records map[int]schemaMigration) error {
	var unknown []int
	for version := range records {
		if _, ok := m.find(version); !ok {
			unknown = append(unknown, version)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	ids := make([]string, len(unknown))
	for i, v := range unknown {
		ids[i] = fmt.Sprintf("%06d_%s", v, records[v].Name)
	}
	return fmt.Errorf("schema_migrations has versions this build does not know: %s", strings.Join(ids, ", "))
}

func (m *Migrator) find(version int) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

func lockMigrations(tx *gorm.DB) error {
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error
}
